// Package fetch resolves a document's source_url into raw_content: a plain
// HTTP GET first, a headless render via chromedp when the page comes back
// looking script-rendered (little to no text in a readability pass), then
// readability article extraction and Markdown conversion. Any failure here
// is always a caller-facing validation error, never a 500 — the caller
// supplied the bad URL, the service didn't fail internally.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"

	"kgraph/internal/apierr"
	"kgraph/internal/logging"
)

const (
	defaultTimeout = 20 * time.Second
	maxBytes       = 8 << 20
	// minReadableChars below this triggers a headless re-fetch: the plain GET
	// likely hit a script-rendered shell with no server-side content.
	minReadableChars = 200
)

// Result is the resolved document content.
type Result struct {
	Title    string
	Markdown string
}

// Fetch resolves rawURL to Markdown, the value an ingestion call assigns to
// a document's raw_content. It returns an *apierr.Error with KindValidation
// on any failure so the ingestion orchestrator surfaces 400, not 500.
func Fetch(ctx context.Context, rawURL string) (Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Result{}, apierr.Validation("invalid source_url: " + rawURL)
	}

	html, finalURL, err := plainGet(ctx, rawURL)
	if err != nil {
		return Result{}, apierr.Validation(fmt.Sprintf("failed to fetch source_url %s: %v", rawURL, err))
	}

	title, article := extractReadable(html, finalURL)
	if len([]rune(article)) < minReadableChars {
		if rendered, rerr := renderHeadless(ctx, rawURL); rerr == nil && len(rendered) > len(html) {
			html = rendered
			title, article = extractReadable(html, finalURL)
		} else if rerr != nil {
			logging.Log.WithError(rerr).WithField("url", rawURL).Warn("headless render fallback failed, using plain GET content")
		}
	}
	if article == "" {
		article = html
	}

	markdown, err := htmltomarkdown.ConvertString(article)
	if err != nil {
		return Result{}, apierr.Validation(fmt.Sprintf("failed to convert fetched content to markdown: %v", err))
	}

	return Result{Title: title, Markdown: markdown}, nil
}

func plainGet(ctx context.Context, rawURL string) (html string, finalURL string, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; kgraph-ingest/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client := &http.Client{Timeout: defaultTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return "", "", err
	}
	if int64(len(body)) > maxBytes {
		return "", "", fmt.Errorf("response exceeds max bytes (%d)", maxBytes)
	}
	return string(body), resp.Request.URL.String(), nil
}

func extractReadable(html, finalURL string) (title, content string) {
	base, err := url.Parse(finalURL)
	if err != nil {
		return "", ""
	}
	article, err := readability.FromReader(strings.NewReader(html), base)
	if err != nil {
		return "", ""
	}
	return article.Title, article.Content
}

func renderHeadless(ctx context.Context, rawURL string) (string, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", true))...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	runCtx, runCancel := context.WithTimeout(browserCtx, defaultTimeout)
	defer runCancel()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(rawURL),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	return html, nil
}
