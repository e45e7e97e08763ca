package feed

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const fetchTimeout = 30 * time.Second

// Fetcher retrieves and parses RSS/Atom feeds over HTTP.
type Fetcher struct {
	httpClient *http.Client
	parser     *gofeed.Parser
	userAgent  string
}

func NewFetcher(httpClient *http.Client, userAgent string) *Fetcher {
	return &Fetcher{
		httpClient: httpClient,
		parser:     gofeed.NewParser(),
		userAgent:  userAgent,
	}
}

// Fetch downloads the feed and returns entries newer than sinceGUID in
// feed-native order. An empty sinceGUID returns every entry. A feed that
// no longer contains sinceGUID is returned in full; the caller's dedup
// handles any overlap.
func (f *Fetcher) Fetch(ctx context.Context, url, sinceGUID string) ([]Entry, error) {
	data, err := f.download(ctx, url)
	if err != nil {
		return nil, err
	}

	parsed, err := f.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		entry := normalizeItem(item)
		if sinceGUID != "" && entry.GUID == sinceGUID {
			break
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func normalizeItem(item *gofeed.Item) Entry {
	entry := Entry{
		GUID:  cmp.Or(item.GUID, item.Link),
		Title: strings.TrimSpace(item.Title),
		Link:  item.Link,
	}

	raw := cmp.Or(item.Content, item.Description)
	entry.Body = strings.TrimSpace(stripTags(raw))

	if item.PublishedParsed != nil {
		entry.PublishedAt = *item.PublishedParsed
	}

	entry.Media = extractMedia(item, raw)

	return entry
}

var imgSrcRe = regexp.MustCompile(`<img[^>]+src=["']([^"']+)["']`)
var tagRe = regexp.MustCompile(`<[^>]*>`)

// extractMedia collects media URLs from enclosures, the item image and
// inline <img> tags, in that order, without duplicates.
func extractMedia(item *gofeed.Item, rawBody string) []string {
	var media []string
	seen := make(map[string]bool)

	add := func(url string) {
		if url == "" || seen[url] {
			return
		}
		seen[url] = true
		media = append(media, url)
	}

	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		if strings.HasPrefix(enc.Type, "image/") || strings.HasPrefix(enc.Type, "video/") {
			add(enc.URL)
		}
	}

	if item.Image != nil {
		add(item.Image.URL)
	}

	for _, match := range imgSrcRe.FindAllStringSubmatch(rawBody, -1) {
		add(match[1])
	}

	return media
}

func stripTags(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")
	return strings.Join(strings.Fields(s), " ")
}
