package recommend_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/recommend"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestFanOutWithoutCredentials(t *testing.T) {
	svc := recommend.NewService(
		recommend.NewSpotifyClient("", "", quietLogger()),
		recommend.NewTMDBClient("", "", quietLogger()),
		quietLogger(),
	)

	recs := svc.ForEmotion(context.Background(), "happy")
	assert.NotNil(t, recs.Tracks)
	assert.NotNil(t, recs.Movies)
	assert.Empty(t, recs.Tracks)
	assert.Empty(t, recs.Movies)
}

func newSpotifyServers(t *testing.T, tokenHits *int) (token, api *httptest.Server) {
	token = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*tokenHits++
		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "id", user)
		json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok-123", "expires_in": 3600})
	}))
	api = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"tracks": []map[string]interface{}{
				{
					"name":    "First Song",
					"artists": []map[string]string{{"name": "A"}, {"name": "B"}},
					"external_urls": map[string]string{
						"spotify": "https://open.spotify.com/track/1",
					},
				},
				{"name": "Second Song", "artists": []map[string]string{{"name": "C"}}},
			},
		})
	}))
	t.Cleanup(token.Close)
	t.Cleanup(api.Close)
	return token, api
}

func TestSpotifyRecommendation(t *testing.T) {
	hits := 0
	token, api := newSpotifyServers(t, &hits)

	c := recommend.NewSpotifyClient("id", "secret", quietLogger())
	c.TokenURL = token.URL
	c.APIURL = api.URL

	tracks, err := c.Recommend(context.Background(), "happy")
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	// Provider order preserved.
	assert.Equal(t, "First Song", tracks[0].Name)
	assert.Equal(t, "A, B", tracks[0].Artists)
	assert.Equal(t, "https://open.spotify.com/track/1", tracks[0].ExternalURL)
}

func TestSpotifyTokenCachedAcrossCalls(t *testing.T) {
	hits := 0
	token, api := newSpotifyServers(t, &hits)

	c := recommend.NewSpotifyClient("id", "secret", quietLogger())
	c.TokenURL = token.URL
	c.APIURL = api.URL

	_, err := c.Recommend(context.Background(), "happy")
	require.NoError(t, err)
	_, err = c.Recommend(context.Background(), "sad")
	require.NoError(t, err)
	assert.Equal(t, 1, hits, "token exchange should happen once")
}

func TestTMDBDiscover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/discover/movie", r.URL.Path)
		require.NotEmpty(t, r.URL.Query().Get("with_genres"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"id": 7, "title": "Quiet Days", "overview": "calm film", "poster_path": "/p.png"},
			},
		})
	}))
	defer srv.Close()

	c := recommend.NewTMDBClient("key", "IN", quietLogger())
	c.BaseURL = srv.URL
	c.ImageBaseURL = "https://img.test"

	movies, err := c.Recommend(context.Background(), "calm")
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, "Quiet Days", movies[0].Title)
	assert.Equal(t, "https://img.test/p.png", movies[0].Poster)
	assert.Equal(t, "https://www.themoviedb.org/movie/7", movies[0].URL)
}

func TestTMDBFallsBackToSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/discover/movie":
			w.WriteHeader(http.StatusInternalServerError)
		case "/search/movie":
			require.Equal(t, "anxious", r.URL.Query().Get("query"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"results": []map[string]interface{}{{"id": 1, "title": "Found It"}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := recommend.NewTMDBClient("key", "", quietLogger())
	c.BaseURL = srv.URL

	movies, err := c.Recommend(context.Background(), "anxious")
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, "Found It", movies[0].Title)
}

func TestFanOutIsolatesProviderFailure(t *testing.T) {
	tmdb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{{"id": 2, "title": "Still Here"}},
		})
	}))
	defer tmdb.Close()

	// Spotify has credentials but its endpoint is unreachable.
	spotify := recommend.NewSpotifyClient("id", "secret", quietLogger())
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	broken.Close()
	spotify.TokenURL = broken.URL

	tmdbClient := recommend.NewTMDBClient("key", "", quietLogger())
	tmdbClient.BaseURL = tmdb.URL

	svc := recommend.NewService(spotify, tmdbClient, quietLogger())
	recs := svc.ForEmotion(context.Background(), "sad")

	assert.Empty(t, recs.Tracks)
	require.Len(t, recs.Movies, 1)
	assert.Equal(t, "Still Here", recs.Movies[0].Title)
}
