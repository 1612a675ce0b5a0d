package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"podforge/internal/services"
)

const (
	droppedSelector = "script, style, nav, footer, header, noscript, iframe, svg, form"
	blockSelector   = "h1, h2, h3, h4, h5, h6, p, li, blockquote, pre, td, dt, dd, figcaption"
)

func (e *Extractor) fromURL(ctx context.Context, raw string) (string, error) {
	target, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return "", services.Wrap(services.ErrExtraction, "extract", "url", fmt.Sprintf("invalid url %q", raw), err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, "extract", "url", "build request", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, "extract", "url", "fetch page", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", services.Wrap(services.ErrExtraction, "extract", "url", fmt.Sprintf("fetch page: http %d", resp.StatusCode), nil)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes+1))
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, "extract", "url", "read page", err)
	}
	if int64(len(body)) > e.maxBytes {
		return "", services.Wrap(services.ErrExtraction, "extract", "url", "page exceeds size limit", nil)
	}
	return pageText(body)
}

// pageText returns the readable text of an HTML document, one block per
// paragraph. Nested blocks are read through their outermost ancestor.
func pageText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, "extract", "url", "parse html", err)
	}
	doc.Find(droppedSelector).Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	if root.Length() == 0 {
		root = doc.Selection
	}

	var blocks []string
	root.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(blockSelector).Length() > 0 {
			return
		}
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			blocks = append(blocks, text)
		}
	})
	if len(blocks) == 0 {
		return strings.TrimSpace(root.Text()), nil
	}
	return strings.Join(blocks, "\n\n"), nil
}
