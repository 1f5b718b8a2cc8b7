// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/autobrr/magnetarr/internal/pipeline"
	"github.com/autobrr/magnetarr/internal/services/arr"
)

const (
	maxWebhookBody        = 1 << 20
	defaultWebhookTimeout = 5 * time.Minute
)

// Runner is implemented by pipeline.Runner.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Report, error)
}

// WebhookHandler receives Sonarr webhook connections and runs the pipeline.
// Concurrent deliveries for the same release share one run.
type WebhookHandler struct {
	runner  Runner
	timeout time.Duration
	group   singleflight.Group
}

func NewWebhookHandler(runner Runner, timeout time.Duration) *WebhookHandler {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookHandler{runner: runner, timeout: timeout}
}

func (h *WebhookHandler) Routes(r chi.Router) {
	r.Post("/sonarr", h.HandleSonarr)
}

type WebhookResponse struct {
	Status   string `json:"status"`
	Release  string `json:"release,omitempty"`
	Thread   string `json:"thread,omitempty"`
	Needed   string `json:"needed,omitempty"`
	Added    int    `json:"added"`
	Existing int    `json:"existing"`
	Failed   int    `json:"failed"`
	DryRun   bool   `json:"dryRun,omitempty"`
	Shared   bool   `json:"shared,omitempty"`
	Error    string `json:"error,omitempty"`
}

type runResult struct {
	report *pipeline.Report
	err    error
}

func (h *WebhookHandler) HandleSonarr(w http.ResponseWriter, r *http.Request) {
	var payload arr.WebhookPayload
	if err := decodeJSON(w, r, &payload, maxWebhookBody); err != nil {
		RespondError(w, http.StatusBadRequest, fmt.Sprintf("invalid webhook payload: %v", err))
		return
	}

	ev := payload.Event()
	if ev.IsTest() {
		log.Info().Msg("Sonarr webhook test received")
		RespondJSON(w, http.StatusOK, WebhookResponse{Status: "ok"})
		return
	}
	if !strings.EqualFold(ev.EventType, arr.EventGrab) && !strings.EqualFold(ev.EventType, arr.EventDownload) {
		log.Debug().Str("event", ev.EventType).Msg("ignoring webhook event")
		RespondJSON(w, http.StatusAccepted, WebhookResponse{Status: pipeline.OutcomeSkipped})
		return
	}

	req := pipeline.Request{Event: ev, ThreadID: r.URL.Query().Get("thread")}
	key := strings.ToLower(strings.TrimSpace(ev.ReleaseTitle)) + "|" + req.ThreadID

	// The run outlives a disconnecting caller. Sonarr does not wait for it and
	// would otherwise cancel half-submitted batches.
	v, _, shared := h.group.Do(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
		defer cancel()
		report, err := h.runner.Run(ctx, req)
		return runResult{report: report, err: err}, nil
	})
	res := v.(runResult)

	resp := responseFor(res.report, res.err)
	resp.Shared = shared

	switch {
	case res.err == nil,
		errors.Is(res.err, pipeline.ErrThreadNotFound),
		errors.Is(res.err, pipeline.ErrNothingFound):
		if res.err != nil {
			log.Warn().Err(res.err).Str("release", ev.ReleaseTitle).Msg("webhook run found nothing to add")
		}
		RespondJSON(w, http.StatusOK, resp)
	case errors.Is(res.err, pipeline.ErrMissingRelease):
		RespondJSON(w, http.StatusBadRequest, resp)
	default:
		log.Error().Err(res.err).Str("release", ev.ReleaseTitle).Msg("webhook run failed")
		RespondJSON(w, http.StatusBadGateway, resp)
	}
}

func responseFor(report *pipeline.Report, err error) WebhookResponse {
	resp := WebhookResponse{Status: pipeline.Outcome(report, err)}
	if err != nil {
		resp.Error = err.Error()
	}
	if report == nil {
		return resp
	}
	resp.Release = report.Release
	resp.Thread = report.Thread.ID
	if report.Needed.Source != "" {
		resp.Needed = report.Needed.Needed.String()
	}
	resp.Added = len(report.Added)
	resp.Existing = len(report.Existing)
	resp.Failed = len(report.Failed)
	resp.DryRun = report.DryRun
	return resp
}
