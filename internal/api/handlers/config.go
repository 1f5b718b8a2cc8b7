// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/autobrr/magnetarr/internal/domain"
)

type ConfigHandler struct {
	cfg *domain.Config
}

func NewConfigHandler(cfg *domain.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// GetConfig serves the running configuration with secrets redacted.
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.cfg.Redacted())
}
