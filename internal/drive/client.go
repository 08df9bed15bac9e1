package drive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// File is an uploaded Drive file.
type File struct {
	ID          string
	Name        string
	WebViewLink string
}

// Client defines the Drive operations the uploader needs.
type Client interface {
	FindFolder(ctx context.Context, name string) (string, error)
	CreateFolder(ctx context.Context, name string) (string, error)
	UploadFile(ctx context.Context, folderID, name, mimeType string, r io.Reader) (*File, error)
	FolderLink(ctx context.Context, folderID string) (string, error)
}

// Ensure APIClient implements Client.
var _ Client = (*APIClient)(nil)

// APIClient implements Client on the Drive v3 API.
type APIClient struct {
	svc *drivev3.Service
}

// NewAPIClient creates a Drive service over an authorized HTTP client.
func NewAPIClient(ctx context.Context, hc *http.Client) (*APIClient, error) {
	svc, err := drivev3.NewService(ctx, option.WithHTTPClient(hc))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &APIClient{svc: svc}, nil
}

// FindFolder returns the id of a folder owned by the user, or "" when none exists.
func (c *APIClient) FindFolder(ctx context.Context, name string) (string, error) {
	q := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false and 'me' in owners",
		strings.ReplaceAll(name, "'", `\'`), folderMimeType)

	list, err := c.svc.Files.List().
		Q(q).
		Fields("files(id, name)").
		Spaces("drive").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to list folders: %w", err)
	}

	if len(list.Files) == 0 {
		return "", nil
	}

	return list.Files[0].Id, nil
}

// CreateFolder creates a folder in the Drive root.
func (c *APIClient) CreateFolder(ctx context.Context, name string) (string, error) {
	f, err := c.svc.Files.Create(&drivev3.File{Name: name, MimeType: folderMimeType}).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to create folder %q: %w", name, err)
	}

	return f.Id, nil
}

// UploadFile uploads r as name inside folderID.
func (c *APIClient) UploadFile(ctx context.Context, folderID, name, mimeType string, r io.Reader) (*File, error) {
	f, err := c.svc.Files.Create(&drivev3.File{Name: name, Parents: []string{folderID}}).
		Media(r, googleapi.ContentType(mimeType)).
		Fields("id, name, webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", name, err)
	}

	return &File{ID: f.Id, Name: f.Name, WebViewLink: f.WebViewLink}, nil
}

// FolderLink returns the browser link of a folder.
func (c *APIClient) FolderLink(ctx context.Context, folderID string) (string, error) {
	f, err := c.svc.Files.Get(folderID).Fields("webViewLink").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get folder link: %w", err)
	}

	return f.WebViewLink, nil
}
