package drive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"hnsort/internal/config"
	"hnsort/internal/logger"
)

// DefaultFolderName is the Drive folder screenshots are uploaded to.
const DefaultFolderName = "Hacker News Articles"

// ErrScreenshotNotFound is returned when the screenshot file does not exist.
var ErrScreenshotNotFound = errors.New("screenshot file not found")

var unsafeName = regexp.MustCompile(`[^a-z0-9]+`)

// Uploader puts screenshots into a single Drive folder, creating it on first use.
type Uploader struct {
	client     Client
	logger     *logger.Logger
	now        func() time.Time
	folderName string

	mu       sync.Mutex
	folderID string
}

// NewUploader creates an uploader over client.
func NewUploader(client Client, folderName string, log *logger.Logger) *Uploader {
	if folderName == "" {
		folderName = DefaultFolderName
	}

	if log == nil {
		log = logger.Discard()
	}

	return &Uploader{client: client, folderName: folderName, logger: log, now: time.Now}
}

// FromConfig builds an uploader from the drive config section. It returns
// (nil, nil) when uploads are disabled or credentials are missing, after
// logging a warning for the latter.
func FromConfig(ctx context.Context, cfg config.DriveConfig, log *logger.Logger) (*Uploader, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	if log == nil {
		log = logger.Discard()
	}

	hc, err := NewHTTPClient(ctx, cfg.CredentialsFile, cfg.TokenFile, log)
	if errors.Is(err, ErrMissingCredentials) || errors.Is(err, ErrMissingToken) {
		log.Warn("skipping google drive upload", "reason", err, "hint", "run driveauth to create a token")

		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	client, err := NewAPIClient(ctx, hc)
	if err != nil {
		return nil, err
	}

	return NewUploader(client, cfg.FolderName, log), nil
}

// ScreenshotName builds <browser>_<test>_<YYYY-MM-DD>_<HH-MM-SS>.png.
func ScreenshotName(browser, test string, t time.Time) string {
	return fmt.Sprintf("%s_%s_%s.png", sanitize(browser), sanitize(test), t.Format("2006-01-02_15-04-05"))
}

func sanitize(s string) string {
	s = strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(s), "_"), "_")
	if s == "" {
		return "unknown"
	}

	return s
}

// UploadScreenshot uploads the PNG at path under a name derived from test and browser.
func (u *Uploader) UploadScreenshot(ctx context.Context, path, test, browser string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrScreenshotNotFound, path)
		}

		return nil, fmt.Errorf("failed to open screenshot: %w", err)
	}
	defer f.Close()

	folderID, err := u.folder(ctx)
	if err != nil {
		u.reportAuth(err)

		return nil, err
	}

	name := ScreenshotName(browser, test, u.now())

	file, err := u.client.UploadFile(ctx, folderID, name, "image/png", f)
	if err != nil {
		u.reportAuth(err)

		return nil, err
	}

	u.logger.Info("screenshot uploaded to google drive",
		"name", file.Name,
		"id", file.ID,
		"link", file.WebViewLink,
		"source", filepath.Base(path),
	)

	if link, err := u.client.FolderLink(ctx, folderID); err != nil {
		u.logger.Debug("could not retrieve folder link", "error", err)
	} else if link != "" {
		u.logger.Info("drive folder", "link", link)
	}

	return file, nil
}

// folder finds or creates the target folder once per uploader.
func (u *Uploader) folder(ctx context.Context) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.folderID != "" {
		return u.folderID, nil
	}

	id, err := u.client.FindFolder(ctx, u.folderName)
	if err != nil {
		return "", err
	}

	if id == "" {
		id, err = u.client.CreateFolder(ctx, u.folderName)
		if err != nil {
			return "", err
		}

		u.logger.Info("created drive folder", "name", u.folderName, "id", id)
	}

	u.folderID = id

	return id, nil
}

func (u *Uploader) reportAuth(err error) {
	if IsInvalidGrant(err) {
		u.logger.Error("google oauth token expired or revoked; run driveauth to re-authenticate", "error", err)
	}
}
