// Package extractor walks the honarticket listing page and turns each detail
// page into a canonical event record. Discovery and detail extraction are
// chained lazily so a consumer receives events while later listing entries
// are still unvisited.
package extractor

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/4Achar-SE4031/4Achar-Backend/internal/locale"
	"github.com/4Achar-SE4031/4Achar-Backend/pkg/types"
)

// FieldError reports a structural field missing (or malformed) on a fetched
// page. It is fatal to the single entry, never to the whole run.
type FieldError struct {
	Field string
	URL   string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s from %s: %v", e.Field, e.URL, e.Err)
	}
	return fmt.Sprintf("extract %s from %s: no match", e.Field, e.URL)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Fetcher is the page/binary retrieval capability the extractor depends on.
type Fetcher interface {
	FetchHTML(ctx context.Context, url string) (*goquery.Document, error)
	FetchBinary(ctx context.Context, url string) ([]byte, string, error)
}

// MediaStore writes a fetched image and returns its local path.
type MediaStore interface {
	Save(sourceURL, contentType string, data []byte) (string, error)
}

// Options fixes the source-specific constants of the extractor.
type Options struct {
	BaseURL     string
	DefaultCity string
	Category    string
}

// Extractor owns the listing-page to detail-page traversal.
type Extractor struct {
	fetcher Fetcher
	media   MediaStore
	opts    Options
	logger  *slog.Logger
}

// cityBySection maps the listing containers known to hold a single city's
// events to that city's display label. Containers not listed here carry a
// per-entry city label instead.
var cityBySection = map[string]string{
	"concerts-tehran-section": "تهران",
	"concerts-kish-section":   "کیش",
}

// New constructs an extractor.
func New(f Fetcher, m MediaStore, opts Options, logger *slog.Logger) *Extractor {
	if opts.Category == "" {
		opts.Category = "Concert"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{fetcher: f, media: m, opts: opts, logger: logger}
}

// DiscoverListings fetches the listing page and lazily yields one entry per
// live event anchor, in document order. Sold-out entries and placeholder
// links are skipped, as is any detail URL already yielded in this run.
// A non-nil error terminates the sequence; only the listing fetch itself (or
// a listing page with no recognisable sections) produces one.
func (x *Extractor) DiscoverListings(ctx context.Context, listingURL string) iter.Seq2[types.ListingEntry, error] {
	return func(yield func(types.ListingEntry, error) bool) {
		doc, err := x.fetcher.FetchHTML(ctx, listingURL)
		if err != nil {
			yield(types.ListingEntry{}, fmt.Errorf("listing page: %w", err))
			return
		}

		sections := doc.Find(`div[id^="concerts-"]`)
		if sections.Length() == 0 {
			yield(types.ListingEntry{}, &FieldError{Field: "concert sections", URL: listingURL})
			return
		}

		seen := make(map[string]struct{})
		for i := 0; i < sections.Length(); i++ {
			section := sections.Eq(i)
			sectionID := section.AttrOr("id", "")

			entries := section.Find(`a[id^="item-"]`)
			for j := 0; j < entries.Length(); j++ {
				if ctx.Err() != nil {
					return
				}
				anchor := entries.Eq(j)

				status := strings.TrimSpace(anchor.Find("div.info > span").AttrOr("class", ""))
				if status == "btn disabled" {
					continue
				}

				href := strings.TrimSpace(anchor.AttrOr("href", ""))
				if href == "" || strings.Contains(href, "javascript") {
					continue
				}
				detailURL := x.resolveURL(href)
				if detailURL == "" {
					continue
				}
				if _, dup := seen[detailURL]; dup {
					continue
				}
				seen[detailURL] = struct{}{}

				city := cityBySection[sectionID]
				if city == "" {
					city = strings.TrimSpace(anchor.Find("div").First().Text())
				}
				if city == "" {
					city = x.opts.DefaultCity
				}

				// Thumbnail download failures drop the card image but keep the entry.
				cardImage := ""
				if src := strings.TrimSpace(anchor.Find("img").First().AttrOr("src", "")); src != "" {
					path, imgErr := x.fetchImage(ctx, x.resolveURL(src))
					if imgErr != nil {
						x.logger.Warn("card image fetch failed", "url", src, "error", imgErr)
					} else {
						cardImage = path
					}
				}

				entry := types.ListingEntry{
					DetailURL: detailURL,
					City:      city,
					CardImage: cardImage,
				}
				if !yield(entry, nil) {
					return
				}
			}
		}
	}
}

// ExtractDetail fetches one detail page and assembles the canonical event.
func (x *Extractor) ExtractDetail(ctx context.Context, entry types.ListingEntry) (*types.Event, error) {
	doc, err := x.fetcher.FetchHTML(ctx, entry.DetailURL)
	if err != nil {
		return nil, err
	}

	dateRaw, err := x.requireAttr(doc, "div#showTimesMenu > a", "data-date", "date", entry.DetailURL)
	if err != nil {
		return nil, err
	}
	title, err := x.requireText(doc, "div#header div.c div.title.attached span h1 a", "title", entry.DetailURL)
	if err != nil {
		return nil, err
	}
	venue, err := x.requireOwnText(doc, "span.location-value", "location", entry.DetailURL)
	if err != nil {
		return nil, err
	}
	address, err := x.requireText(doc, "span.location-value span", "address", entry.DetailURL)
	if err != nil {
		return nil, err
	}
	showTime, err := x.requireText(doc, "div#showTimesMenu a div span.instance-time", "show time", entry.DetailURL)
	if err != nil {
		return nil, err
	}
	coverSrc, err := x.requireAttr(doc, "img.cover-image", "src", "cover image", entry.DetailURL)
	if err != nil {
		return nil, err
	}
	priceText, err := x.requireText(doc, "div.price-info", "price", entry.DetailURL)
	if err != nil {
		return nil, err
	}

	startTime, err := parseStartTime(dateRaw, showTime, entry.DetailURL)
	if err != nil {
		return nil, err
	}

	var lat, lon float64
	if mapLink, ok := doc.Find("div#location small a").First().Attr("href"); ok {
		lat, lon, _ = locale.ParseLatLon(mapLink)
	}

	coverImage, err := x.fetchImage(ctx, x.resolveURL(coverSrc))
	if err != nil {
		return nil, fmt.Errorf("cover image: %w", err)
	}

	return &types.Event{
		Title:        title,
		Description:  title,
		StartTime:    startTime,
		City:         entry.City,
		Location:     venue,
		Address:      strings.ReplaceAll(address, "\t", ""),
		Category:     x.opts.Category,
		TicketPrices: locale.ExtractPrices(priceText),
		Latitude:     lat,
		Longitude:    lon,
		CoverImage:   coverImage,
		CardImage:    entry.CardImage,
		SourceURL:    entry.DetailURL,
	}, nil
}

// parseStartTime combines the Jalali date attribute ("1402-9-19") and the
// Persian-digit wall clock ("۲۰:۳۰") into a UTC timestamp.
func parseStartTime(dateRaw, timeRaw, pageURL string) (time.Time, error) {
	dateParts, err := splitInts(locale.ToASCIIDigits(dateRaw), "-", 3)
	if err != nil {
		return time.Time{}, &FieldError{Field: "date", URL: pageURL, Err: err}
	}
	timeParts, err := splitInts(locale.ToASCIIDigits(timeRaw), ":", 2)
	if err != nil {
		return time.Time{}, &FieldError{Field: "show time", URL: pageURL, Err: err}
	}
	ts, err := locale.JalaliToUTC(dateParts[0], dateParts[1], dateParts[2], timeParts[0], timeParts[1])
	if err != nil {
		return time.Time{}, &FieldError{Field: "date", URL: pageURL, Err: err}
	}
	return ts, nil
}

func splitInts(s, sep string, want int) ([]int, error) {
	parts := strings.Split(strings.TrimSpace(s), sep)
	if len(parts) != want {
		return nil, fmt.Errorf("expected %d fields separated by %q in %q", want, sep, s)
	}
	out := make([]int, want)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}

func (x *Extractor) requireText(doc *goquery.Document, selector, field, pageURL string) (string, error) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", &FieldError{Field: field, URL: pageURL}
	}
	return strings.TrimSpace(sel.Text()), nil
}

func (x *Extractor) requireOwnText(doc *goquery.Document, selector, field, pageURL string) (string, error) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", &FieldError{Field: field, URL: pageURL}
	}
	return ownText(sel), nil
}

func (x *Extractor) requireAttr(doc *goquery.Document, selector, attr, field, pageURL string) (string, error) {
	val, ok := doc.Find(selector).First().Attr(attr)
	if !ok || strings.TrimSpace(val) == "" {
		return "", &FieldError{Field: field, URL: pageURL}
	}
	return strings.TrimSpace(val), nil
}

// ownText collects the selection's direct text nodes, excluding child
// elements. The venue label shares its span with a nested address span.
func ownText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, node := range sel.Nodes {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func (x *Extractor) fetchImage(ctx context.Context, rawURL string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("empty image url")
	}
	data, contentType, err := x.fetcher.FetchBinary(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return x.media.Save(rawURL, contentType, data)
}

// resolveURL makes a page-relative href absolute against the source base URL.
func (x *Extractor) resolveURL(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return href
	}
	base, err := url.Parse(x.opts.BaseURL)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}
