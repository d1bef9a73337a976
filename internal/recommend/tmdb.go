package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"pulse/internal/models"
)

// tmdbGenreIDs maps each emotion to TMDB genre ids for the discovery query.
var tmdbGenreIDs = map[string][]int{
	models.EmotionHappy:   {35, 10751}, // Comedy, Family
	models.EmotionCalm:    {99, 18},    // Documentary, Drama
	models.EmotionSad:     {18, 10749}, // Drama, Romance
	models.EmotionAnxious: {53, 9648},  // Thriller, Mystery
	models.EmotionAngry:   {28, 80},    // Action, Crime
	models.EmotionTired:   {16, 10751}, // Animation, Family
	models.EmotionNeutral: {18, 12},    // Drama, Adventure
}

const tmdbMovieLimit = 5

// TMDBClient talks to the title catalog. It prefers the structured discovery
// query by genre; a non-success there falls back to free-text search with the
// emotion label itself.
type TMDBClient struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	Region       string
	HTTPClient   *http.Client

	logger *logrus.Logger
}

func NewTMDBClient(apiKey, region string, logger *logrus.Logger) *TMDBClient {
	return &TMDBClient{
		APIKey:       apiKey,
		BaseURL:      "https://api.themoviedb.org/3",
		ImageBaseURL: "https://image.tmdb.org/t/p/w500",
		Region:       region,
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
		logger:       logger,
	}
}

// Recommend returns up to tmdbMovieLimit titles for the emotion, in provider
// order. A missing API key means an empty result, not an error.
func (c *TMDBClient) Recommend(ctx context.Context, emotion string) ([]Movie, error) {
	if c.APIKey == "" {
		return nil, nil
	}

	ids, ok := tmdbGenreIDs[emotion]
	if !ok {
		ids = tmdbGenreIDs[models.EmotionNeutral]
	}

	movies, err := c.discover(ctx, ids)
	if err == nil {
		return movies, nil
	}
	c.logger.WithError(err).WithField("emotion", emotion).Debug("tmdb discover failed, falling back to search")

	return c.search(ctx, emotion)
}

func (c *TMDBClient) discover(ctx context.Context, genreIDs []int) ([]Movie, error) {
	parts := make([]string, len(genreIDs))
	for i, id := range genreIDs {
		parts[i] = strconv.Itoa(id)
	}

	q := url.Values{}
	q.Set("api_key", c.APIKey)
	q.Set("with_genres", strings.Join(parts, ","))
	q.Set("sort_by", "popularity.desc")
	if c.Region != "" {
		q.Set("region", c.Region)
	}
	return c.fetch(ctx, c.BaseURL+"/discover/movie?"+q.Encode())
}

func (c *TMDBClient) search(ctx context.Context, query string) ([]Movie, error) {
	q := url.Values{}
	q.Set("api_key", c.APIKey)
	q.Set("query", query)
	return c.fetch(ctx, c.BaseURL+"/search/movie?"+q.Encode())
}

func (c *TMDBClient) fetch(ctx context.Context, rawURL string) ([]Movie, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tmdb: status %d", resp.StatusCode)
	}

	var payload struct {
		Results []struct {
			ID         int    `json:"id"`
			Title      string `json:"title"`
			Overview   string `json:"overview"`
			PosterPath string `json:"poster_path"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	movies := make([]Movie, 0, tmdbMovieLimit)
	for _, m := range payload.Results {
		if len(movies) == tmdbMovieLimit {
			break
		}
		movie := Movie{
			Title:    m.Title,
			Overview: m.Overview,
			URL:      fmt.Sprintf("https://www.themoviedb.org/movie/%d", m.ID),
		}
		if m.PosterPath != "" {
			movie.Poster = c.ImageBaseURL + m.PosterPath
		}
		movies = append(movies, movie)
	}
	return movies, nil
}
