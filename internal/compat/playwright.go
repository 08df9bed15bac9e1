package compat

import (
	"errors"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"hnsort/internal/logger"
)

// ErrUnknownBrowser is returned for an engine playwright does not provide.
var ErrUnknownBrowser = errors.New("unknown browser")

const (
	selectorRow      = "tr.athing.submission"
	selectorTitle    = ".titleline > a"
	selectorAge      = "span.age"
	selectorMoreLink = "a.morelink"
)

// PlaywrightOptions configures the playwright opener.
type PlaywrightOptions struct {
	TimeoutMs float64
	Headless  bool
	// Install downloads the driver and browsers before starting.
	Install bool
}

// PlaywrightOpener launches pages in chromium, firefox or webkit.
type PlaywrightOpener struct {
	pw     *playwright.Playwright
	logger *logger.Logger
	opts   PlaywrightOptions
}

var _ Opener = (*PlaywrightOpener)(nil)

// StartPlaywright starts the playwright driver.
func StartPlaywright(opts PlaywrightOptions, log *logger.Logger) (*PlaywrightOpener, error) {
	if log == nil {
		log = logger.Discard()
	}

	if opts.Install {
		if err := playwright.Install(); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not launch playwright: %w", err)
	}

	return &PlaywrightOpener{pw: pw, opts: opts, logger: log}, nil
}

// Stop shuts the driver down.
func (o *PlaywrightOpener) Stop() error {
	return o.pw.Stop()
}

func (o *PlaywrightOpener) browserType(name string) (playwright.BrowserType, error) {
	switch name {
	case "chromium":
		return o.pw.Chromium, nil
	case "firefox":
		return o.pw.Firefox, nil
	case "webkit":
		return o.pw.WebKit, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBrowser, name)
	}
}

// Open launches a browser and returns a page in it. Closing the page closes the browser.
func (o *PlaywrightOpener) Open(name string) (Page, error) {
	bt, err := o.browserType(name)
	if err != nil {
		return nil, err
	}

	browser, err := bt.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(o.opts.Headless),
	})
	if err != nil {
		return nil, fmt.Errorf("could not launch %s: %w", name, err)
	}

	page, err := browser.NewPage()
	if err != nil {
		_ = browser.Close()

		return nil, fmt.Errorf("could not create page: %w", err)
	}

	if o.opts.TimeoutMs > 0 {
		page.SetDefaultTimeout(o.opts.TimeoutMs)
		page.SetDefaultNavigationTimeout(o.opts.TimeoutMs)
	}

	o.logger.Debug("browser launched", "browser", name, "version", browser.Version())

	return &playwrightPage{page: page, browser: browser}, nil
}

type playwrightPage struct {
	page    playwright.Page
	browser playwright.Browser
}

func (p *playwrightPage) Goto(url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	return nil
}

func (p *playwrightPage) Title() (string, error) {
	return p.page.Title()
}

func (p *playwrightPage) Stories() ([]Story, error) {
	v, err := p.page.Locator(selectorRow).EvaluateAll(`rows => rows.map(r => {
		const title = r.querySelector("` + selectorTitle + `");
		const sub = r.nextElementSibling;
		const age = sub ? sub.querySelector("` + selectorAge + `") : null;
		return [title ? title.textContent : null, age ? age.getAttribute("title") : null];
	})`)
	if err != nil {
		return nil, fmt.Errorf("failed to read stories: %w", err)
	}

	values, ok := v.([]interface{})
	if !ok {
		return nil, nil
	}

	stories := make([]Story, len(values))

	for i, raw := range values {
		pair, ok := raw.([]interface{})
		if !ok || len(pair) != 2 {
			continue
		}

		stories[i] = Story{Title: optString(pair[0]), Age: optString(pair[1])}
	}

	return stories, nil
}

func optString(v interface{}) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}

	return &s
}

func (p *playwrightPage) HasMore() (bool, error) {
	return p.page.Locator(selectorMoreLink).IsVisible()
}

func (p *playwrightPage) NextPage() error {
	if err := p.page.Locator(selectorMoreLink).Click(); err != nil {
		return err
	}

	return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	})
}

func (p *playwrightPage) Screenshot(path string) error {
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})

	return err
}

func (p *playwrightPage) Close() error {
	return p.browser.Close()
}
