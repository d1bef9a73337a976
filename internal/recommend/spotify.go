package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"pulse/internal/models"
)

// spotifyGenres maps each emotion to seed genres. Unknown labels use the
// neutral row.
var spotifyGenres = map[string][]string{
	models.EmotionHappy:   {"pop", "dance"},
	models.EmotionCalm:    {"ambient", "chill"},
	models.EmotionSad:     {"acoustic", "singer-songwriter"},
	models.EmotionAnxious: {"ambient", "meditation"},
	models.EmotionAngry:   {"rock", "metal"},
	models.EmotionTired:   {"chill", "sleep"},
	models.EmotionNeutral: {"indie", "alternative"},
}

const spotifyTrackLimit = 6

// SpotifyClient talks to the track catalog. Each search needs a prior
// client-credentials token exchange; tokens are cached until shortly before
// their expiry.
type SpotifyClient struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIURL       string
	HTTPClient   *http.Client

	tokens *gocache.Cache
	logger *logrus.Logger
}

func NewSpotifyClient(clientID, clientSecret string, logger *logrus.Logger) *SpotifyClient {
	return &SpotifyClient{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     "https://accounts.spotify.com/api/token",
		APIURL:       "https://api.spotify.com/v1",
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
		tokens:       gocache.New(gocache.NoExpiration, 10*time.Minute),
		logger:       logger,
	}
}

// Recommend returns up to spotifyTrackLimit tracks for the emotion, in
// provider order. Missing credentials mean an empty result, not an error.
func (c *SpotifyClient) Recommend(ctx context.Context, emotion string) ([]Track, error) {
	if c.ClientID == "" || c.ClientSecret == "" {
		return nil, nil
	}

	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	genres, ok := spotifyGenres[emotion]
	if !ok {
		genres = spotifyGenres[models.EmotionNeutral]
	}

	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", spotifyTrackLimit))
	q.Set("seed_genres", strings.Join(genres, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIURL+"/recommendations?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spotify recommendations: status %d", resp.StatusCode)
	}

	var payload struct {
		Tracks []struct {
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
			PreviewURL   string `json:"preview_url"`
			ExternalURLs struct {
				Spotify string `json:"spotify"`
			} `json:"external_urls"`
			Album struct {
				Images []struct {
					URL string `json:"url"`
				} `json:"images"`
			} `json:"album"`
		} `json:"tracks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(payload.Tracks))
	for _, t := range payload.Tracks {
		if len(tracks) == spotifyTrackLimit {
			break
		}
		names := make([]string, 0, len(t.Artists))
		for _, a := range t.Artists {
			names = append(names, a.Name)
		}
		track := Track{
			Name:        t.Name,
			Artists:     strings.Join(names, ", "),
			PreviewURL:  t.PreviewURL,
			ExternalURL: t.ExternalURLs.Spotify,
		}
		if len(t.Album.Images) > 0 {
			track.Image = t.Album.Images[0].URL
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

const spotifyTokenKey = "app_token"

func (c *SpotifyClient) token(ctx context.Context) (string, error) {
	if v, ok := c.tokens.Get(spotifyTokenKey); ok {
		return v.(string), nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.ClientID, c.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("spotify token exchange: status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("spotify token exchange: empty token")
	}

	ttl := time.Duration(payload.ExpiresIn)*time.Second - time.Minute
	if ttl > 0 {
		c.tokens.Set(spotifyTokenKey, payload.AccessToken, ttl)
	}
	return payload.AccessToken, nil
}
