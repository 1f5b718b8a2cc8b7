// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package arr

import (
	"context"
	"strings"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/magnetarr/pkg/episode"
	"github.com/autobrr/magnetarr/pkg/titleparse"
)

// DefaultParseCacheTTL keeps Sonarr parse results for repeated hooks of the same release.
const DefaultParseCacheTTL = 1 * time.Hour

// Source names where a needed-episode set came from.
type Source string

const (
	SourceEvent   Source = "event"
	SourcePath    Source = "path"
	SourceSonarr  Source = "sonarr"
	SourceMissing Source = "sonarr-missing"
	SourceTitle   Source = "release-title"
	// SourceAll means nothing could be determined and every magnet is accepted.
	SourceAll Source = "all"
)

// Resolution is the needed-episode set for one run.
type Resolution struct {
	Needed episode.Needed
	Source Source
}

// All reports whether no set could be determined.
func (r Resolution) All() bool {
	return r.Source == SourceAll
}

// Service resolves what a hook event needs, asking Sonarr when the event alone is not enough.
type Service struct {
	client *Client
	cache  *ttlcache.Cache[string, *ParsedRelease]
}

// NewService creates a resolver. client may be nil when no Sonarr API is configured.
func NewService(client *Client) *Service {
	return &Service{
		client: client,
		cache: ttlcache.New(ttlcache.Options[string, *ParsedRelease]{}.
			SetDefaultTTL(DefaultParseCacheTTL)),
	}
}

// Client returns the Sonarr client, nil when not configured.
func (s *Service) Client() *Client {
	return s.client
}

// Resolve walks the sources in order: event variables, episode file path,
// Sonarr's parse of the release (missing episodes for a full season),
// the release title itself. When all fail every magnet is accepted.
func (s *Service) Resolve(ctx context.Context, ev HookEvent) Resolution {
	if n, ok := eventNeeded(ev); ok {
		return Resolution{Needed: n, Source: SourceEvent}
	}
	if ev.RelativePath != "" {
		if n, ok := episode.ParseNeededFromPath(ev.RelativePath); ok {
			return Resolution{Needed: n, Source: SourcePath}
		}
	}
	if res, ok := s.fromSonarr(ctx, ev); ok {
		return res
	}
	if n, ok := fromTitle(ev.ReleaseTitle); ok {
		return Resolution{Needed: n, Source: SourceTitle}
	}
	return Resolution{Source: SourceAll}
}

func eventNeeded(ev HookEvent) (episode.Needed, bool) {
	if strings.TrimSpace(ev.Season) == "" || strings.TrimSpace(ev.Episodes) == "" {
		return episode.Needed{}, false
	}
	n, err := episode.ParseNeeded(ev.Season, ev.Episodes)
	if err != nil {
		log.Warn().Err(err).Str("season", ev.Season).Str("episodes", ev.Episodes).Msg("[ARR] could not read episode variables, trying other sources")
		return episode.Needed{}, false
	}
	return n, true
}

func (s *Service) fromSonarr(ctx context.Context, ev HookEvent) (Resolution, bool) {
	if s.client == nil || ev.ReleaseTitle == "" {
		return Resolution{}, false
	}

	parsed, err := s.parse(ctx, ev.ReleaseTitle)
	if err != nil {
		log.Warn().Err(err).Str("release", ev.ReleaseTitle).Msg("[ARR] parse request failed")
		return Resolution{}, false
	}
	if parsed == nil || parsed.Season <= 0 {
		return Resolution{}, false
	}

	if !parsed.FullSeason && len(parsed.Episodes) > 0 {
		n, err := episode.NewNeeded(parsed.Season, parsed.Episodes...)
		if err != nil {
			return Resolution{}, false
		}
		return Resolution{Needed: n, Source: SourceSonarr}, true
	}

	seriesID := parsed.SeriesID
	if seriesID == 0 {
		seriesID = ev.SeriesID
	}
	if seriesID > 0 {
		missing, err := s.client.MissingEpisodes(ctx, seriesID, parsed.Season)
		if err != nil {
			log.Warn().Err(err).Int("seriesId", seriesID).Msg("[ARR] could not list missing episodes")
		} else if len(missing) > 0 {
			n, err := episode.NewNeeded(parsed.Season, missing...)
			if err == nil {
				log.Debug().Str("needed", n.String()).Msg("[ARR] season pack limited to missing episodes")
				return Resolution{Needed: n, Source: SourceMissing}, true
			}
		}
	}
	return Resolution{Needed: episode.WholeSeason(parsed.Season), Source: SourceSonarr}, true
}

func (s *Service) parse(ctx context.Context, title string) (*ParsedRelease, error) {
	if cached, ok := s.cache.Get(title); ok {
		log.Trace().Str("release", title).Msg("[ARR] parse cache hit")
		return cached, nil
	}
	parsed, err := s.client.ParseTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	s.cache.Set(title, parsed, ttlcache.DefaultTTL)
	return parsed, nil
}

// fromTitle reads the needed set from the release title. Titles naming
// several seasons are not used.
func fromTitle(release string) (episode.Needed, bool) {
	ids := titleparse.Normalize(release)
	if len(ids) == 0 {
		return episode.Needed{}, false
	}
	season := ids[0].Season()
	var eps []int
	for _, id := range ids {
		if id.Season() != season {
			return episode.Needed{}, false
		}
		if id.IsSeasonPack() {
			return episode.WholeSeason(season), true
		}
		eps = append(eps, id.Episode())
	}
	n, err := episode.NewNeeded(season, eps...)
	if err != nil {
		return episode.Needed{}, false
	}
	return n, true
}
