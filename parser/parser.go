package parser

import (
	"bytes"
	"log/slog"
	"strings"

	"feed-refresher/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// FeedParser turns a raw RSS/Atom payload into candidate articles.
type FeedParser interface {
	Parse(payload []byte, sourceURL string) ([]models.CandidateArticle, error)
}

type feedParser struct {
	logger *slog.Logger
}

func NewFeedParser(logger *slog.Logger) FeedParser {
	return &feedParser{logger: logger}
}

// Parse extracts candidate articles in document order. Entries lacking
// both a link and any content or title are dropped. A payload gofeed
// cannot recognize yields a *models.ParseError.
func (p *feedParser) Parse(payload []byte, sourceURL string) ([]models.CandidateArticle, error) {
	fp := gofeed.NewParser()

	feed, err := fp.Parse(bytes.NewReader(payload))
	if err != nil {
		return nil, &models.ParseError{URL: sourceURL, Cause: err}
	}

	candidates := make([]models.CandidateArticle, 0, len(feed.Items))

	for _, item := range feed.Items {
		candidate := extractCandidate(item)
		if candidate.Link == "" && candidate.Content == "" && candidate.Title == "" {
			continue
		}
		candidates = append(candidates, candidate)
	}

	p.logger.Debug("parsed feed payload",
		"url", sourceURL,
		"items", len(feed.Items),
		"candidates", len(candidates))

	return candidates, nil
}

func extractCandidate(item *gofeed.Item) models.CandidateArticle {
	candidate := models.CandidateArticle{
		Title: strings.TrimSpace(item.Title),
		Link:  strings.TrimSpace(item.Link),
		Tags:  item.Categories,
	}

	// Canonical id: atom id and rss guid both land in GUID; fall back to
	// the link so every candidate with a link is deduplicatable.
	candidate.GUID = item.GUID
	if candidate.GUID == "" {
		candidate.GUID = candidate.Link
	}

	if item.Author != nil && item.Author.Name != "" {
		candidate.Author = item.Author.Name
	} else if len(item.Authors) > 0 && item.Authors[0] != nil {
		candidate.Author = item.Authors[0].Name
	}

	// Best-available body: full content beats description/summary.
	candidate.Content = item.Content
	if candidate.Content == "" {
		candidate.Content = item.Description
	}

	if item.PublishedParsed != nil {
		published := item.PublishedParsed.UTC()
		candidate.Published = &published
	} else if item.UpdatedParsed != nil {
		updated := item.UpdatedParsed.UTC()
		candidate.Published = &updated
	}

	candidate.Thumbnail = extractThumbnail(item, candidate.Content)

	return candidate
}

// extractThumbnail scans media metadata, enclosures, and finally embedded
// HTML for a usable image URL.
func extractThumbnail(item *gofeed.Item, body string) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, thumb := range media["thumbnail"] {
			if url := thumb.Attrs["url"]; url != "" {
				return url
			}
		}
		for _, content := range media["content"] {
			url := content.Attrs["url"]
			if url == "" {
				continue
			}
			if content.Attrs["medium"] == "image" || strings.HasPrefix(content.Attrs["type"], "image/") || hasImageExtension(url) {
				return url
			}
		}
	}

	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	for _, enclosure := range item.Enclosures {
		if enclosure == nil || enclosure.URL == "" {
			continue
		}
		if strings.HasPrefix(enclosure.Type, "image/") || hasImageExtension(enclosure.URL) {
			return enclosure.URL
		}
	}

	return firstImageInHTML(body)
}

func hasImageExtension(url string) bool {
	lowered := strings.ToLower(url)
	if idx := strings.IndexAny(lowered, "?#"); idx >= 0 {
		lowered = lowered[:idx]
	}

	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp"} {
		if strings.HasSuffix(lowered, ext) {
			return true
		}
	}

	return false
}

func firstImageInHTML(body string) string {
	if !strings.Contains(body, "<img") {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	src, _ := doc.Find("img[src]").First().Attr("src")

	return src
}
