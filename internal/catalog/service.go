package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cachegrab/cachegrab/internal/provider"
)

// ListSource selects one ranked list (trending or popular) per media type.
type ListSource struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Movies  bool `mapstructure:"movies" yaml:"movies"`
	Shows   bool `mapstructure:"shows" yaml:"shows"`
	Limit   int  `mapstructure:"limit" yaml:"limit"`
}

// CustomList references a user-owned list by owner and slug.
type CustomList struct {
	Owner string `mapstructure:"owner" yaml:"owner"`
	Slug  string `mapstructure:"slug" yaml:"slug"`
}

// WatchlistSource enables a user's watchlist.
type WatchlistSource struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Owner   string `mapstructure:"owner" yaml:"owner"`
}

// SourcesConfig declares which catalog lists feed a run.
type SourcesConfig struct {
	Trending  ListSource      `mapstructure:"trending" yaml:"trending"`
	Popular   ListSource      `mapstructure:"popular" yaml:"popular"`
	Lists     []CustomList    `mapstructure:"lists" yaml:"lists"`
	Watchlist WatchlistSource `mapstructure:"watchlist" yaml:"watchlist"`
}

// Count returns the number of individual list fetches the config describes.
func (c SourcesConfig) Count() int {
	n := 0
	for _, ls := range []ListSource{c.Trending, c.Popular} {
		if !ls.Enabled {
			continue
		}
		if ls.Movies {
			n++
		}
		if ls.Shows {
			n++
		}
	}
	n += len(c.Lists)
	if c.Watchlist.Enabled {
		n++
	}
	return n
}

// Service collects titles from every configured source.
type Service struct {
	source  Source
	sources SourcesConfig
	logger  zerolog.Logger
}

// NewService creates a new catalog service.
func NewService(source Source, sources SourcesConfig, logger zerolog.Logger) *Service {
	return &Service{
		source:  source,
		sources: sources,
		logger:  logger.With().Str("component", "catalog").Logger(),
	}
}

type fetch struct {
	name string
	call func(ctx context.Context) ([]MediaItem, error)
}

func (s *Service) fetches() []fetch {
	var out []fetch
	add := func(kind string, ls ListSource, call func(context.Context, MediaType, int) ([]MediaItem, error)) {
		if !ls.Enabled {
			return
		}
		for _, mt := range []MediaType{MediaTypeMovie, MediaTypeShow} {
			if (mt == MediaTypeMovie && !ls.Movies) || (mt == MediaTypeShow && !ls.Shows) {
				continue
			}
			out = append(out, fetch{
				name: fmt.Sprintf("%s/%s", kind, mt),
				call: func(ctx context.Context) ([]MediaItem, error) { return call(ctx, mt, ls.Limit) },
			})
		}
	}

	add("trending", s.sources.Trending, s.source.ListTrending)
	add("popular", s.sources.Popular, s.source.ListPopular)

	for _, l := range s.sources.Lists {
		out = append(out, fetch{
			name: fmt.Sprintf("list/%s/%s", l.Owner, l.Slug),
			call: func(ctx context.Context) ([]MediaItem, error) { return s.source.ListCustomList(ctx, l.Owner, l.Slug) },
		})
	}

	if s.sources.Watchlist.Enabled {
		owner := s.sources.Watchlist.Owner
		out = append(out, fetch{
			name: "watchlist/" + owner,
			call: func(ctx context.Context) ([]MediaItem, error) { return s.source.ListWatchlist(ctx, owner) },
		})
	}
	return out
}

// Collect walks the configured sources in order (trending, popular, custom
// lists, watchlist) and returns their titles de-duplicated by media type and
// external id, keeping first-seen order.
//
// A failing source is logged and skipped. When every configured source was
// skipped for missing or rejected credentials, the auth error is returned.
func (s *Service) Collect(ctx context.Context) ([]MediaItem, error) {
	fetches := s.fetches()
	if len(fetches) == 0 {
		s.logger.Warn().Msg("No content sources configured")
		return nil, nil
	}

	seen := make(map[string]struct{})
	var (
		items      []MediaItem
		authFailed int
		lastAuth   error
	)

	for _, f := range fetches {
		if err := ctx.Err(); err != nil {
			return items, err
		}

		list, err := f.call(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return items, err
			}
			if provider.IsAuthError(err) {
				authFailed++
				lastAuth = err
			}
			s.logger.Warn().Err(err).Str("source", f.name).Msg("Skipping content source")
			continue
		}

		added := 0
		for _, item := range list {
			if item.ExternalID == "" {
				continue
			}
			if _, dup := seen[item.Key()]; dup {
				continue
			}
			seen[item.Key()] = struct{}{}
			items = append(items, item)
			added++
		}

		s.logger.Info().
			Str("source", f.name).
			Int("returned", len(list)).
			Int("new", added).
			Msg("Fetched content source")
	}

	if authFailed == len(fetches) {
		return nil, fmt.Errorf("all content sources failed authentication: %w", lastAuth)
	}

	return items, nil
}
