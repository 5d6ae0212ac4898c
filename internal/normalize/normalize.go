// Package normalize cleans raw provider items into Article records ready
// for embedding. Normalization is deterministic and side-effect-free;
// malformed input degrades to a skippable zero Article instead of
// aborting the batch.
package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"marketintel/internal/core"
)

const (
	// maxContentLength bounds normalized text to stay inside embedding
	// model input limits.
	maxContentLength = 8000
	ellipsis         = "..."
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// allowedRe keeps word characters and common punctuation; everything
	// else becomes a space.
	allowedRe = regexp.MustCompile(`[^\w\s.,!?;:()\-"']`)
	tagRe     = regexp.MustCompile(`<[^>]*>`)
)

// RawItem is the merged per-provider shape handed to the normalizer.
type RawItem struct {
	Industry    string
	Source      string
	Title       string
	URL         string
	PublishedAt time.Time
	Summary     string
	Content     string
	Sentiment   *float64 // nil when the provider supplies no polarity
	Entities    map[string]string
}

// Normalize converts a raw item into an Article. The returned Article has
// empty Content when the input carries no usable text; callers skip those.
func Normalize(raw RawItem) core.Article {
	body := raw.Content
	if body == "" {
		body = raw.Summary
	}

	cleaned := CleanText(body, raw.Title)

	article := core.Article{
		Industry:    raw.Industry,
		Source:      raw.Source,
		Title:       collapseWhitespace(stripMarkup(raw.Title)),
		URL:         raw.URL,
		PublishedAt: raw.PublishedAt,
		Summary:     collapseWhitespace(stripMarkup(raw.Summary)),
		Content:     cleaned,
		Entities:    raw.Entities,
	}
	if raw.Sentiment != nil {
		article.Sentiment = *raw.Sentiment
	}
	return article
}

// CleanText strips markup, collapses whitespace, filters characters
// outside the allow-list and truncates to the maximum length. A non-empty
// title is prefixed as a context line.
func CleanText(raw, title string) string {
	text := stripMarkup(raw)
	text = allowedRe.ReplaceAllString(text, " ")
	text = collapseWhitespace(text)

	if text == "" {
		return ""
	}
	if len(text) > maxContentLength {
		text = text[:maxContentLength] + ellipsis
	}

	if title != "" {
		title = collapseWhitespace(stripMarkup(title))
		text = "Title: " + title + "\n\nContent: " + text
	}
	return text
}

// stripMarkup removes HTML using goquery, falling back to a tag regexp
// when the fragment cannot be parsed.
func stripMarkup(raw string) string {
	if !strings.ContainsRune(raw, '<') {
		return raw
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return tagRe.ReplaceAllString(raw, " ")
	}
	return doc.Text()
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
