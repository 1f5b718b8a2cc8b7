// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package arr

// SystemStatusResponse represents the response from /api/v3/system/status
type SystemStatusResponse struct {
	AppName string `json:"appName"`
	Version string `json:"version"`
}

// SonarrParseResponse represents the response from Sonarr's /api/v3/parse endpoint
type SonarrParseResponse struct {
	Title             string                   `json:"title"`
	ParsedEpisodeInfo *SonarrParsedEpisodeInfo `json:"parsedEpisodeInfo"`
	Series            *SonarrSeries            `json:"series"`
	Episodes          []Episode                `json:"episodes"`
}

// SonarrParsedEpisodeInfo contains parsed episode information from Sonarr
type SonarrParsedEpisodeInfo struct {
	SeriesTitle       string `json:"seriesTitle"`
	SeasonNumber      int    `json:"seasonNumber"`
	EpisodeNumbers    []int  `json:"episodeNumbers"`
	FullSeason        bool   `json:"fullSeason"`
	IsMultiSeason     bool   `json:"isMultiSeason"`
	ReleaseGroup      string `json:"releaseGroup"`
	IsDaily           bool   `json:"isDaily"`
	IsAbsoluteNumber  bool   `json:"isAbsoluteNumbering"`
	IsPossibleSpecial bool   `json:"isPossibleSpecialEpisode"`
}

// SonarrSeries represents a series in Sonarr
type SonarrSeries struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	TVDbID int    `json:"tvdbId"`
}

// Episode is one entry of /api/v3/episode
type Episode struct {
	ID            int    `json:"id"`
	SeriesID      int    `json:"seriesId"`
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	Title         string `json:"title"`
	HasFile       bool   `json:"hasFile"`
	Monitored     bool   `json:"monitored"`
}

// ParsedRelease is what Sonarr knows about a release title.
type ParsedRelease struct {
	SeriesID    int
	SeriesTitle string
	Season      int
	Episodes    []int
	FullSeason  bool
}

// Parsed flattens a parse response. It returns nil when Sonarr could not
// recognise the release.
func (r *SonarrParseResponse) Parsed() *ParsedRelease {
	info := r.ParsedEpisodeInfo
	if info == nil {
		return nil
	}
	p := &ParsedRelease{
		SeriesTitle: info.SeriesTitle,
		Season:      info.SeasonNumber,
		Episodes:    append([]int(nil), info.EpisodeNumbers...),
		FullSeason:  info.FullSeason,
	}
	if r.Series != nil {
		p.SeriesID = r.Series.ID
		if r.Series.Title != "" {
			p.SeriesTitle = r.Series.Title
		}
	}
	if len(p.Episodes) == 0 && !p.FullSeason {
		for _, ep := range r.Episodes {
			if ep.SeasonNumber == p.Season && ep.EpisodeNumber > 0 {
				p.Episodes = append(p.Episodes, ep.EpisodeNumber)
			}
		}
	}
	return p
}
