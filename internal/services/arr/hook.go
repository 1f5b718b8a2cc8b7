// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package arr

import (
	"os"
	"strconv"
	"strings"
)

// Sonarr event types this tool cares about.
const (
	EventTest     = "Test"
	EventGrab     = "Grab"
	EventDownload = "Download"
)

// HookEvent is one Sonarr notification, read from the custom script
// environment or a webhook payload.
type HookEvent struct {
	EventType      string
	ReleaseTitle   string
	SeriesTitle    string
	SeriesID       int
	Season         string
	Episodes       string
	RelativePath   string
	DownloadID     string
	DownloadClient string
	ApplicationURL string
	APIKey         string
}

// IsTest reports whether Sonarr is only checking the connection.
func (e HookEvent) IsTest() bool {
	return strings.EqualFold(e.EventType, EventTest)
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// EventFromEnv reads the sonarr_* variables of a custom script connection.
// Grab events carry release_* numbers, Download events episodefile_* numbers.
func EventFromEnv(lookup LookupFunc) HookEvent {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(names ...string) string {
		for _, name := range names {
			for _, key := range []string{name, strings.ToUpper(name)} {
				if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
					return strings.TrimSpace(v)
				}
			}
		}
		return ""
	}

	ev := HookEvent{
		EventType:      get("sonarr_eventtype"),
		ReleaseTitle:   get("sonarr_release_title"),
		SeriesTitle:    get("sonarr_series_title"),
		Season:         get("sonarr_episode_seasonnumber", "sonarr_release_seasonnumber", "sonarr_episodefile_seasonnumber"),
		Episodes:       get("sonarr_episode_episodenumbers", "sonarr_release_episodenumbers", "sonarr_episodefile_episodenumbers"),
		RelativePath:   get("sonarr_episodefile_relativepath"),
		DownloadID:     get("sonarr_download_id"),
		DownloadClient: get("sonarr_download_client"),
		ApplicationURL: get("sonarr_applicationurl"),
		APIKey:         get("sonarr_apikey"),
	}
	if id, err := strconv.Atoi(get("sonarr_series_id")); err == nil {
		ev.SeriesID = id
	}
	return ev
}

// WebhookPayload is the JSON body of a Sonarr webhook connection.
type WebhookPayload struct {
	EventType string `json:"eventType"`
	Series    struct {
		ID     int    `json:"id"`
		Title  string `json:"title"`
		TVDbID int    `json:"tvdbId"`
	} `json:"series"`
	Episodes []struct {
		ID            int `json:"id"`
		EpisodeNumber int `json:"episodeNumber"`
		SeasonNumber  int `json:"seasonNumber"`
	} `json:"episodes"`
	Release struct {
		ReleaseTitle string `json:"releaseTitle"`
		Indexer      string `json:"indexer"`
	} `json:"release"`
	EpisodeFile struct {
		RelativePath string `json:"relativePath"`
	} `json:"episodeFile"`
	DownloadClient string `json:"downloadClient"`
	DownloadID     string `json:"downloadId"`
	ApplicationURL string `json:"applicationUrl"`
}

// Event converts the payload. Episodes of other seasons than the first one listed are ignored.
func (p WebhookPayload) Event() HookEvent {
	ev := HookEvent{
		EventType:      p.EventType,
		ReleaseTitle:   p.Release.ReleaseTitle,
		SeriesTitle:    p.Series.Title,
		SeriesID:       p.Series.ID,
		RelativePath:   p.EpisodeFile.RelativePath,
		DownloadID:     p.DownloadID,
		DownloadClient: p.DownloadClient,
		ApplicationURL: p.ApplicationURL,
	}
	if len(p.Episodes) > 0 {
		season := p.Episodes[0].SeasonNumber
		eps := make([]string, 0, len(p.Episodes))
		for _, e := range p.Episodes {
			if e.SeasonNumber == season {
				eps = append(eps, strconv.Itoa(e.EpisodeNumber))
			}
		}
		ev.Season = strconv.Itoa(season)
		ev.Episodes = strings.Join(eps, ",")
	}
	return ev
}
