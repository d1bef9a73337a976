package recommend

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Track is one music recommendation from the playlist catalog.
type Track struct {
	Name        string `json:"name"`
	Artists     string `json:"artists"`
	PreviewURL  string `json:"previewUrl,omitempty"`
	ExternalURL string `json:"externalUrl,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Movie is one title recommendation from the discovery catalog.
type Movie struct {
	Title    string `json:"title"`
	Overview string `json:"overview,omitempty"`
	Poster   string `json:"poster,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Recommendations is the merged fan-out result. Either list may be empty;
// the structure itself is always returned.
type Recommendations struct {
	Tracks []Track `json:"spotify"`
	Movies []Movie `json:"tmdb"`
}

// Service queries both catalogs concurrently. One provider failing (missing
// credentials, bad response, timeout) empties its own list and nothing else.
type Service struct {
	spotify *SpotifyClient
	tmdb    *TMDBClient
	logger  *logrus.Logger
}

func NewService(spotify *SpotifyClient, tmdb *TMDBClient, logger *logrus.Logger) *Service {
	return &Service{spotify: spotify, tmdb: tmdb, logger: logger}
}

// ForEmotion fans out to both catalogs and waits for both, regardless of
// individual failures. It never returns an error.
func (s *Service) ForEmotion(ctx context.Context, emotion string) Recommendations {
	recs := Recommendations{Tracks: []Track{}, Movies: []Movie{}}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		tracks, err := s.spotify.Recommend(ctx, emotion)
		if err != nil {
			s.logger.WithError(err).WithField("emotion", emotion).Warn("spotify recommendations degraded")
			return
		}
		if tracks != nil {
			recs.Tracks = tracks
		}
	}()

	go func() {
		defer wg.Done()
		movies, err := s.tmdb.Recommend(ctx, emotion)
		if err != nil {
			s.logger.WithError(err).WithField("emotion", emotion).Warn("tmdb recommendations degraded")
			return
		}
		if movies != nil {
			recs.Movies = movies
		}
	}()

	wg.Wait()
	return recs
}
