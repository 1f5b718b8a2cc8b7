// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/magnetarr/internal/buildinfo"
	"github.com/autobrr/magnetarr/pkg/version"
)

// ReleaseChecker is implemented by version.Checker.
type ReleaseChecker interface {
	CheckNewVersion(ctx context.Context, current string) (bool, *version.Release, error)
}

type VersionHandler struct {
	checker ReleaseChecker
}

func NewVersionHandler(checker ReleaseChecker) *VersionHandler {
	return &VersionHandler{checker: checker}
}

type LatestVersionResponse struct {
	TagName     string `json:"tag_name"`
	Name        string `json:"name,omitempty"`
	HTMLURL     string `json:"html_url"`
	PublishedAt string `json:"published_at"`
}

func (h *VersionHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, buildinfo.Get())
}

// GetLatestVersion answers 204 when no newer release is known.
func (h *VersionHandler) GetLatestVersion(w http.ResponseWriter, r *http.Request) {
	if h.checker == nil {
		RespondJSON(w, http.StatusNoContent, nil)
		return
	}

	newer, release, err := h.checker.CheckNewVersion(r.Context(), buildinfo.Version)
	if err != nil {
		log.Debug().Err(err).Msg("version check failed")
		RespondJSON(w, http.StatusNoContent, nil)
		return
	}
	if !newer || release == nil {
		RespondJSON(w, http.StatusNoContent, nil)
		return
	}

	response := LatestVersionResponse{
		TagName:     release.TagName,
		HTMLURL:     release.HTMLURL,
		PublishedAt: release.PublishedAt.Format(time.RFC3339),
	}
	if release.Name != nil {
		response.Name = *release.Name
	}
	RespondJSON(w, http.StatusOK, response)
}
