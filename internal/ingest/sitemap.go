package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// botUserAgent identifies the crawler to the sites it fetches.
const botUserAgent = "Mozilla/5.0 (compatible; Bot/1.0; +http://example.com/bot)"

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// sitemapDoc decodes both sitemap flavours: a urlset of page URLs or a
// sitemapindex of nested sitemaps.
type sitemapDoc struct {
	XMLName  xml.Name
	URLs     []sitemapLoc `xml:"url"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

// parseSitemapXML returns the page URLs and nested sitemap URLs found in
// one sitemap document.
func parseSitemapXML(data []byte) (pages, nested []string, err error) {
	var doc sitemapDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse sitemap xml: %w", err)
	}
	for _, u := range doc.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			pages = append(pages, loc)
		}
	}
	for _, s := range doc.Sitemaps {
		if loc := strings.TrimSpace(s.Loc); loc != "" {
			nested = append(nested, loc)
		}
	}
	return pages, nested, nil
}

// filterURLs dedupes in order and drops non-content URLs: anything
// mentioning sitemap, tag or category, and xml/json/pdf resources. With
// sameHost set, URLs on a different host than base are dropped too.
func filterURLs(urls []string, base string, sameHost bool) []string {
	var baseHost string
	if sameHost {
		if bu, err := url.Parse(base); err == nil {
			baseHost = bu.Hostname()
		}
	}

	seen := make(map[string]bool)
	var kept []string
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true

		lower := strings.ToLower(u)
		if strings.Contains(lower, "sitemap") ||
			strings.HasSuffix(lower, ".xml") ||
			strings.HasSuffix(lower, ".json") ||
			strings.HasSuffix(lower, ".pdf") ||
			strings.Contains(lower, "tag") ||
			strings.Contains(lower, "category") {
			continue
		}
		if baseHost != "" {
			pu, err := url.Parse(u)
			if err != nil || pu.Hostname() != baseHost {
				continue
			}
		}
		kept = append(kept, u)
	}
	return kept
}

// fetchURL GETs a URL with the bot User-Agent and returns the body.
func (p *Pipeline) fetchURL(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", botUserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", u, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	return body, nil
}

// collectSitemapURLs resolves a sitemap into page URLs, following one level
// of sitemapindex nesting.
func (p *Pipeline) collectSitemapURLs(ctx context.Context, sitemapURL string) ([]string, error) {
	data, err := p.fetchURL(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	pages, nested, err := parseSitemapXML(data)
	if err != nil {
		return nil, err
	}

	for _, child := range nested {
		childData, err := p.fetchURL(ctx, child)
		if err != nil {
			p.log.Warn("nested sitemap fetch failed, skipping", "url", child, "error", err)
			continue
		}
		childPages, _, err := parseSitemapXML(childData)
		if err != nil {
			p.log.Warn("nested sitemap parse failed, skipping", "url", child, "error", err)
			continue
		}
		pages = append(pages, childPages...)
	}

	return pages, nil
}
