package movieclub

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// maxReviews caps how many reviews a lookup returns.
const maxReviews = 5

// LetterboxdClient scrapes film pages from letterboxd.com.
type LetterboxdClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewLetterboxdClient builds a client against the production site.
func NewLetterboxdClient() *LetterboxdClient {
	return &LetterboxdClient{
		BaseURL: "https://letterboxd.com",
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Review is one scraped Letterboxd review.
type Review struct {
	Reviewer string
	Rating   string
	Date     string
	Text     string
}

// FilmSlug normalizes a movie title into a Letterboxd URL slug.
func FilmSlug(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	var b strings.Builder
	lastDash := false
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Reviews fetches the most-active reviews for a film slug.
func (c *LetterboxdClient) Reviews(ctx context.Context, slug string) ([]Review, error) {
	doc, err := c.fetch(ctx, fmt.Sprintf("/film/%s/reviews/by/activity/", slug))
	if err != nil {
		return nil, fmt.Errorf("fetching reviews for %s: %w", slug, err)
	}
	return ParseReviews(doc), nil
}

// AverageRating scrapes the display rating off a film page.
func (c *LetterboxdClient) AverageRating(ctx context.Context, slug string) (string, error) {
	doc, err := c.fetch(ctx, fmt.Sprintf("/film/%s/", slug))
	if err != nil {
		return "", fmt.Errorf("fetching film page for %s: %w", slug, err)
	}
	rating := strings.TrimSpace(doc.Find("a.display-rating").First().Text())
	if rating == "" {
		rating = strings.TrimSpace(doc.Find(".average-rating").First().Text())
	}
	if rating == "" {
		return "", fmt.Errorf("no rating found for %s", slug)
	}
	return rating, nil
}

// ParseReviews extracts reviews from a Letterboxd reviews page.
func ParseReviews(doc *goquery.Document) []Review {
	var reviews []Review
	doc.Find("li.film-detail").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		review := Review{
			Reviewer: strings.TrimSpace(sel.Find("strong.name").First().Text()),
			Rating:   strings.TrimSpace(sel.Find(".rating").First().Text()),
			Date:     strings.TrimSpace(sel.Find("span._nobr").First().Text()),
		}
		if review.Reviewer == "" {
			review.Reviewer = "Unknown"
		}
		if review.Rating == "" {
			review.Rating = "No rating"
		}

		var paragraphs []string
		sel.Find(".body-text p").Each(func(_ int, p *goquery.Selection) {
			paragraphs = append(paragraphs, strings.TrimSpace(p.Text()))
		})
		review.Text = strings.Join(paragraphs, "\n")

		reviews = append(reviews, review)
		return len(reviews) < maxReviews
	})
	return reviews
}

func (c *LetterboxdClient) fetch(ctx context.Context, path string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}
