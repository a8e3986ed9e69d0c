package movieclub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const tmdbPosterBase = "https://image.tmdb.org/t/p/w500"

// TMDBClient queries The Movie Database search API.
type TMDBClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client

	genres map[int]string
}

// NewTMDBClient builds a client against the production API.
func NewTMDBClient(apiKey string) *TMDBClient {
	return &TMDBClient{
		BaseURL: "https://api.themoviedb.org/3",
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Movie is the subset of TMDB metadata the club surfaces.
type Movie struct {
	Title     string
	Year      int
	Genres    []string
	Overview  string
	PosterURL string
	Rating    float64
}

type tmdbSearchResponse struct {
	Results []struct {
		Title       string  `json:"title"`
		ReleaseDate string  `json:"release_date"`
		GenreIDs    []int   `json:"genre_ids"`
		Overview    string  `json:"overview"`
		PosterPath  string  `json:"poster_path"`
		VoteAverage float64 `json:"vote_average"`
	} `json:"results"`
}

type tmdbGenreResponse struct {
	Genres []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

// Search returns the best match for a movie name.
func (c *TMDBClient) Search(ctx context.Context, name string) (*Movie, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("movie name cannot be empty")
	}

	params := url.Values{}
	params.Set("api_key", c.APIKey)
	params.Set("query", name)

	var search tmdbSearchResponse
	if err := c.getJSON(ctx, "/search/movie?"+params.Encode(), &search); err != nil {
		return nil, fmt.Errorf("searching tmdb for %q: %w", name, err)
	}
	if len(search.Results) == 0 {
		return nil, fmt.Errorf("no results found for %q", name)
	}

	best := search.Results[0]
	movie := &Movie{
		Title:    best.Title,
		Overview: best.Overview,
		Rating:   best.VoteAverage,
	}
	if len(best.ReleaseDate) >= 4 {
		fmt.Sscanf(best.ReleaseDate[:4], "%d", &movie.Year)
	}
	if best.PosterPath != "" {
		movie.PosterURL = tmdbPosterBase + best.PosterPath
	}

	genres, err := c.genreNames(ctx, best.GenreIDs)
	if err != nil {
		// Genre lookup failing should not sink the whole result.
		genres = nil
	}
	movie.Genres = genres
	return movie, nil
}

func (c *TMDBClient) genreNames(ctx context.Context, ids []int) ([]string, error) {
	if c.genres == nil {
		params := url.Values{}
		params.Set("api_key", c.APIKey)
		var resp tmdbGenreResponse
		if err := c.getJSON(ctx, "/genre/movie/list?"+params.Encode(), &resp); err != nil {
			return nil, err
		}
		c.genres = make(map[int]string, len(resp.Genres))
		for _, g := range resp.Genres {
			c.genres[g.ID] = g.Name
		}
	}

	var out []string
	for _, id := range ids {
		if name, ok := c.genres[id]; ok {
			out = append(out, name)
		}
	}
	return out, nil
}

func (c *TMDBClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
