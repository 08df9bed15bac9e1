// Package crawler fetches Hacker News listing pages and extracts raw article rows from them.
package crawler

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"hnsort/internal/models"
)

// Listing selectors.
const (
	SelectorRow      = "tr.athing.submission"
	SelectorTitle    = ".titleline"
	SelectorLink     = ".titleline > a"
	SelectorAge      = "span.age"
	SelectorUser     = ".hnuser"
	SelectorMoreLink = "a.morelink"
)

// Parser errors.
var (
	ErrEmptyListing = errors.New("no article rows found in listing")
)

// Listing is one parsed page.
type Listing struct {
	// NextURL is the resolved "More" link, empty on the last page.
	NextURL string
	Records []models.RawRecord
}

// HasMore reports whether the page links to a following page.
func (l *Listing) HasMore() bool {
	return l.NextURL != ""
}

// Parser extracts listing rows from Hacker News markup.
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads a listing page. pageURL is used to resolve the relative "More" link and may be empty.
// A page without article rows is the end of the listing unless it still links to a following page,
// in which case the markup is not understood and ErrEmptyListing is returned.
func (p *Parser) Parse(r io.Reader, pageURL string) (*Listing, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	doc := goquery.NewDocumentFromNode(root)

	listing := &Listing{}

	doc.Find(SelectorRow).Each(func(_ int, row *goquery.Selection) {
		listing.Records = append(listing.Records, p.parseRow(row))
	})

	href, more := doc.Find(SelectorMoreLink).First().Attr("href")
	more = more && href != ""

	if len(listing.Records) == 0 {
		if more {
			return nil, ErrEmptyListing
		}

		return listing, nil
	}

	if more {
		next, err := resolve(pageURL, href)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve more link %q: %w", href, err)
		}

		listing.NextURL = next
	}

	return listing, nil
}

// ParseString is Parse over an in-memory document.
func (p *Parser) ParseString(doc, pageURL string) (*Listing, error) {
	return p.Parse(strings.NewReader(doc), pageURL)
}

// parseRow reads the title row and the subtext row that follows it. Missing elements stay nil.
func (p *Parser) parseRow(row *goquery.Selection) models.RawRecord {
	rec := models.RawRecord{
		ID:    attr(row, "id"),
		Title: text(row.Find(SelectorTitle).First()),
		URL:   attr(row.Find(SelectorLink).First(), "href"),
	}

	sub := row.Next()
	if sub.Length() == 0 {
		return rec
	}

	age := sub.Find(SelectorAge).First()
	rec.RawTimestamp = attr(age, "title")
	rec.SubmittedRelative = text(age)
	rec.User = text(sub.Find(SelectorUser).First())

	return rec
}

func attr(sel *goquery.Selection, name string) *string {
	if sel.Length() == 0 {
		return nil
	}

	v, ok := sel.Attr(name)
	if !ok {
		return nil
	}

	return &v
}

func text(sel *goquery.Selection) *string {
	if sel.Length() == 0 {
		return nil
	}

	v := strings.TrimSpace(sel.Text())

	return &v
}

func resolve(base, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}

	if base == "" {
		return ref.String(), nil
	}

	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	return b.ResolveReference(ref).String(), nil
}
