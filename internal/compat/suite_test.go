package compat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hnsort/internal/drive"
)

var ErrLaunchFailed = errors.New("launch failed")

// FakePage serves a fixed title and a list of pages of age titles. Story titles are "story <page>.<row>".
type FakePage struct {
	title  string
	pages  [][]*string
	page   int
	closed bool
}

func (f *FakePage) Goto(string) error { f.page = 0; return nil }
func (f *FakePage) Title() (string, error) { return f.title, nil }
func (f *FakePage) HasMore() (bool, error) { return f.page < len(f.pages)-1, nil }
func (f *FakePage) NextPage() error { f.page++; return nil }
func (f *FakePage) Close() error { f.closed = true; return nil }
func (f *FakePage) Screenshot(p string) error { return os.WriteFile(p, []byte("png"), 0644) }
func (f *FakePage) Stories() ([]Story, error) {
	if len(f.pages) == 0 {
		return nil, nil
	}

	stories := make([]Story, len(f.pages[f.page]))
	for i, age := range f.pages[f.page] {
		title := fmt.Sprintf("story %d.%d", f.page+1, i+1)
		stories[i] = Story{Title: &title, Age: age}
	}

	return stories, nil
}

// FakeOpener hands out pages built by newPage, or fails for browsers in fail.
type FakeOpener struct {
	newPage func() *FakePage
	fail    map[string]bool
	opened  []*FakePage
}

func (o *FakeOpener) Open(browser string) (Page, error) {
	if o.fail[browser] {
		return nil, ErrLaunchFailed
	}

	p := o.newPage()
	o.opened = append(o.opened, p)

	return p, nil
}

// FakeUploader records uploads.
type FakeUploader struct {
	paths []string
}

func (u *FakeUploader) UploadScreenshot(_ context.Context, path, test, browser string) (*drive.File, error) {
	u.paths = append(u.paths, path)

	return &drive.File{ID: "1", Name: browser + "_" + test, WebViewLink: "https://drive/" + test}, nil
}

// agePages builds pages of descending ISO timestamps, perPage per page.
func agePages(pages, perPage int) [][]*string {
	base := time.Date(2024, 12, 4, 19, 30, 0, 0, time.UTC)
	out := make([][]*string, pages)
	n := 0

	for p := range out {
		for range perPage {
			ts := base.Add(-time.Duration(n) * time.Minute)
			s := fmt.Sprintf("%s %d", ts.Format("2006-01-02T15:04:05"), ts.Unix())
			out[p] = append(out[p], &s)
			n++
		}
	}

	return out
}

func hnPage(pages [][]*string) func() *FakePage {
	return func() *FakePage {
		return &FakePage{title: "New Links | Hacker News", pages: pages}
	}
}

func TestSuite_AllPass(t *testing.T) {
	opener := &FakeOpener{newPage: hnPage(agePages(4, 30))}
	suite := NewSuite(opener, nil, Options{
		Browsers:     []string{"chromium", "firefox", "webkit"},
		ArtifactsDir: t.TempDir(),
	}, nil)

	report, err := suite.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(report.Results) != 9 || !report.Passed() {
		t.Fatalf("expected 9 passing results, got %+v", report.Results)
	}

	for _, p := range opener.opened {
		if !p.closed {
			t.Error("page left open")
		}
	}
}

func TestSuite_SortedStopsAtSample(t *testing.T) {
	pages := agePages(10, 30)
	// Out of order entry on page 5, beyond the first 100.
	newer := "2030-01-01T00:00:00 1893456000"
	pages[4][0] = &newer

	var last *FakePage

	opener := &FakeOpener{newPage: func() *FakePage {
		last = hnPage(pages)()

		return last
	}}

	suite := NewSuite(opener, nil, Options{Browsers: []string{"chromium"}, ArtifactsDir: t.TempDir()}, nil)

	if err := suite.checkSorted(context.Background(), opener.newPage()); err != nil {
		t.Fatalf("violation beyond the sample should be ignored: %v", err)
	}

	if last.page != 3 {
		t.Errorf("expected to stop on page 4, stopped on %d", last.page+1)
	}
}

func TestSuite_Failures(t *testing.T) {
	pages := agePages(2, 30)
	pages[0][3] = nil
	newer := "2030-01-01T00:00:00 1893456000"
	pages[1][2] = &newer

	dir := t.TempDir()
	uploader := &FakeUploader{}
	opener := &FakeOpener{newPage: func() *FakePage {
		return &FakePage{title: "Example Domain", pages: pages}
	}}

	suite := NewSuite(opener, uploader, Options{
		Browsers:           []string{"webkit"},
		ArtifactsDir:       dir,
		IncludeFailureDemo: true,
	}, nil)

	report, err := suite.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	failed := report.Failed()
	if len(failed) != 4 {
		t.Fatalf("expected 4 failures, got %+v", failed)
	}

	want := map[string]string{
		CheckTitle:             "page title",
		CheckTimestampsPresent: "position 4",
		CheckSorted:            "cannot be parsed",
		CheckFailureDemo:       "deliberate failure",
	}

	for _, res := range failed {
		if !strings.Contains(res.Error, want[res.Check]) {
			t.Errorf("%s: error %q does not mention %q", res.Check, res.Error, want[res.Check])
		}

		if res.Screenshot != filepath.Join(dir, "webkit_"+res.Check+".png") {
			t.Errorf("%s: unexpected screenshot path %q", res.Check, res.Screenshot)
		}

		if res.DriveLink != "https://drive/"+res.Check {
			t.Errorf("%s: drive link not recorded", res.Check)
		}
	}

	if len(uploader.paths) != 4 {
		t.Errorf("expected 4 uploads, got %d", len(uploader.paths))
	}
}

func TestSuite_CheckSorted(t *testing.T) {
	malformed := "yesterday 1733340636"
	newer := "2030-01-01T00:00:00 1893456000"

	tests := []struct {
		name    string
		mutate  func(pages [][]*string)
		wantErr error
		want    string
	}{
		{name: "sorted", mutate: func([][]*string) {}},
		{
			name:    "newer story later on",
			mutate:  func(pages [][]*string) { pages[1][2] = &newer },
			wantErr: ErrNotSorted,
			want:    `"story 2.3"`,
		},
		{
			name:    "unparseable timestamp",
			mutate:  func(pages [][]*string) { pages[0][5] = &malformed },
			wantErr: ErrInvalidTimestamp,
			want:    `1 of 60, first "story 1.6" at position 6`,
		},
		{
			name:    "missing timestamps",
			mutate:  func(pages [][]*string) { pages[0][1] = nil; pages[1][0] = nil },
			wantErr: ErrInvalidTimestamp,
			want:    `2 of 60, first "story 1.2" at position 2`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := agePages(2, 30)
			tt.mutate(pages)

			suite := NewSuite(&FakeOpener{}, nil, Options{Browsers: []string{"chromium"}}, nil)

			err := suite.checkSorted(context.Background(), hnPage(pages)())
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}

				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}

			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestSuite_CheckTimestampsPresent(t *testing.T) {
	malformed := "2024-13-45T99:00:00 1733340636"
	blank := "  "

	tests := []struct {
		name    string
		age     *string
		wantErr error
	}{
		{name: "missing", age: nil, wantErr: ErrMissingTimestamp},
		{name: "blank", age: &blank, wantErr: ErrMissingTimestamp},
		{name: "unparseable", age: &malformed, wantErr: ErrInvalidTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := agePages(1, 30)
			pages[0][7] = tt.age

			suite := NewSuite(&FakeOpener{}, nil, Options{Browsers: []string{"chromium"}}, nil)

			err := suite.checkTimestampsPresent(context.Background(), hnPage(pages)())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}

			if !strings.Contains(err.Error(), "position 8 (story 1.8)") {
				t.Errorf("error %q does not name the story", err)
			}
		})
	}
}

func TestSuite_OpenFailure(t *testing.T) {
	opener := &FakeOpener{newPage: hnPage(agePages(1, 30)), fail: map[string]bool{"firefox": true}}
	suite := NewSuite(opener, nil, Options{Browsers: []string{"chromium", "firefox"}}, nil)

	report, err := suite.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	failed := report.Failed()
	if len(failed) != 3 {
		t.Fatalf("expected every firefox check to fail, got %+v", failed)
	}

	for _, res := range failed {
		if res.Browser != "firefox" || !strings.Contains(res.Error, ErrLaunchFailed.Error()) {
			t.Errorf("unexpected failure: %+v", res)
		}
	}
}

func TestSuite_NoBrowsers(t *testing.T) {
	if _, err := NewSuite(&FakeOpener{}, nil, Options{}, nil).Run(context.Background()); !errors.Is(err, ErrNoBrowsers) {
		t.Fatalf("Expected ErrNoBrowsers, got %v", err)
	}
}
