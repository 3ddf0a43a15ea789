// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package exposuresim serves a small exposure backend: entitlements, EPG
// lookups by instant and bookmarks, driven by a YAML catalog. It backs the
// daemon and the HTTP client tests.
package exposuresim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/timeshift/internal/control/http/problem"
	"github.com/ManuGH/timeshift/internal/control/middleware"
	"github.com/ManuGH/timeshift/internal/domain/playback/model"
	"github.com/ManuGH/timeshift/internal/health"
	xglog "github.com/ManuGH/timeshift/internal/log"
	"github.com/ManuGH/timeshift/internal/resume"
)

// Exposure error messages.
const (
	MsgNoMediaForProgram = "NO_MEDIA_FOR_PROGRAM"
	MsgNotEntitled       = "NOT_ENTITLED"
	MsgUnknownAsset      = "UNKNOWN_ASSET"
	MsgNoProgramAtTime   = "NO_PROGRAM_AT_TIME"
	MsgUnauthorized      = "INVALID_SESSION_TOKEN"
)

const anonymous = "anonymous"

type Options struct {
	Stack middleware.StackConfig
	// RequireToken rejects requests without a bearer token.
	RequireToken bool
	// Health serves /healthz and /readyz. Catalog and store checks are
	// registered on it.
	Health *health.Manager
	Logger *zerolog.Logger
	Now          func() time.Time
}

// Server is the simulated backend.
type Server struct {
	catalog      *Catalog
	store        resume.Store
	requireToken bool
	logger       zerolog.Logger
	now          func() time.Time
	router       chi.Router
}

// New builds the server and its routes. store may be nil to disable bookmarks.
func New(catalog *Catalog, store resume.Store, opts Options) *Server {
	s := &Server{
		catalog:      catalog,
		store:        store,
		requireToken: opts.RequireToken,
		now:          opts.Now,
	}
	if s.catalog == nil {
		s.catalog = &Catalog{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.Logger != nil {
		s.logger = *opts.Logger
	} else {
		s.logger = xglog.WithComponent("exposuresim")
	}

	hm := opts.Health
	if hm == nil {
		hm = health.NewManager("")
	}
	hm.RegisterChecker(health.CheckerFunc{CheckName: "catalog", Fn: s.checkCatalog})
	hm.RegisterChecker(health.CheckerFunc{CheckName: "resume_store", Fn: s.checkStore})

	r := middleware.NewRouter(opts.Stack)
	r.Get("/healthz", hm.ServeHealth)
	r.Get("/readyz", hm.ServeReady)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v2", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/entitlement/{assetId}/play", s.handlePlay)
		r.Get("/entitlement/{assetId}/validate", s.handleValidate)
		r.Get("/epg/{channelId}/program", s.handleProgramAt)
		r.Put("/bookmark/{assetId}", s.handlePutBookmark)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		problem.Write(w, r, http.StatusNotFound, "system/not_found", "Not Found", "NOT_FOUND", "no such route", nil)
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type principalKey struct{}

func principalFrom(ctx context.Context) string {
	if p, ok := ctx.Value(principalKey{}).(string); ok && p != "" {
		return p
	}
	return anonymous
}

// authenticate maps the bearer token to a principal. The token itself is the
// principal; the simulator does not verify it.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if token == "" && s.requireToken {
			writeExposureError(w, http.StatusUnauthorized, MsgUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) checkCatalog(context.Context) health.CheckResult {
	if len(s.catalog.Channels) == 0 && len(s.catalog.Programs) == 0 {
		return health.CheckResult{Status: health.StatusDegraded, Message: "catalog is empty"}
	}
	return health.CheckResult{
		Status:  health.StatusHealthy,
		Message: fmt.Sprintf("%d channels, %d programs", len(s.catalog.Channels), len(s.catalog.Programs)),
	}
}

func (s *Server) checkStore(ctx context.Context) health.CheckResult {
	if s.store == nil {
		return health.CheckResult{Status: health.StatusHealthy, Message: "bookmarks disabled"}
	}
	var err error
	if c, ok := s.store.(resume.Checker); ok {
		err = c.Check(ctx)
	} else {
		_, err = s.store.Get(ctx, "health", "probe")
	}
	if err != nil {
		return health.CheckResult{Status: health.StatusUnhealthy, Error: err.Error()}
	}
	return health.CheckResult{Status: health.StatusHealthy}
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetId")
	q := r.URL.Query()
	kind := model.StreamKind(strings.ToUpper(q.Get("kind")))
	variant := model.MediaVariant(strings.ToUpper(q.Get("drm")))

	if kind != model.StreamProgram {
		if ch, ok := s.catalog.channel(assetID); ok {
			s.logPlay(r, assetID, variant, http.StatusOK)
			writeJSON(w, http.StatusOK, model.Entitlement{
				PlayToken:    uuid.NewString(),
				MediaLocator: ch.MediaLocator,
				ChannelID:    ch.ID,
				Live:         true,
				Variant:      variant,
			})
			return
		}
		if kind == model.StreamChannel {
			writeExposureError(w, http.StatusNotFound, MsgUnknownAsset)
			return
		}
	}

	p, ok := s.catalog.program(assetID)
	if !ok {
		writeExposureError(w, http.StatusNotFound, MsgUnknownAsset)
		return
	}
	if p.Deny {
		s.logPlay(r, assetID, variant, http.StatusForbidden)
		writeExposureError(w, http.StatusForbidden, denyReason(p))
		return
	}
	if p.NoMediaUnlessUnencrypted && variant != model.VariantUnencrypted {
		s.logPlay(r, assetID, variant, http.StatusForbidden)
		writeExposureError(w, http.StatusForbidden, MsgNoMediaForProgram)
		return
	}

	ent := model.Entitlement{
		PlayToken:    uuid.NewString(),
		MediaLocator: p.MediaLocator,
		ProgramID:    p.ID,
		ChannelID:    p.ChannelID,
		Live:         p.Live,
		Variant:      variant,
	}
	if bm := s.bookmark(r.Context(), assetID); bm != nil {
		ent.LastViewedOffsetMs = bm.OffsetMs
		ent.LastViewedTimeMs = bm.TimeMs
	}
	s.logPlay(r, assetID, variant, http.StatusOK)
	writeJSON(w, http.StatusOK, ent)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	p, ok := s.catalog.program(chi.URLParam(r, "assetId"))
	if !ok {
		writeExposureError(w, http.StatusNotFound, MsgUnknownAsset)
		return
	}
	if channelID := r.URL.Query().Get("channelId"); channelID != "" && channelID != p.ChannelID {
		writeExposureError(w, http.StatusNotFound, MsgUnknownAsset)
		return
	}
	status := "SUCCESS"
	if p.Deny {
		status = denyReason(p)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

type programResponse struct {
	ProgramID string `json:"programId"`
	ChannelID string `json:"channelId"`
	AssetID   string `json:"assetId"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
}

func (s *Server) handleProgramAt(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelId")
	raw := r.URL.Query().Get("time")
	ts, err := strconv.ParseInt(raw, 10, 64)
	if raw == "" {
		ts, err = s.now().UnixMilli(), nil
	}
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, "exposure/bad_request", "Bad Request", "INVALID_TIME",
			"time must be unix milliseconds", map[string]any{"param": "time"})
		return
	}
	if _, ok := s.catalog.channel(channelID); !ok {
		writeExposureError(w, http.StatusNotFound, MsgUnknownAsset)
		return
	}
	p, ok := s.catalog.programAt(channelID, ts)
	if !ok {
		writeExposureError(w, http.StatusNotFound, MsgNoProgramAtTime)
		return
	}
	writeJSON(w, http.StatusOK, programResponse{
		ProgramID: p.ID,
		ChannelID: p.ChannelID,
		AssetID:   p.ID,
		StartTime: p.Start,
		EndTime:   p.End,
	})
}

type bookmarkRequest struct {
	LastViewedOffset *int64 `json:"lastViewedOffset"`
	LastViewedTime   *int64 `json:"lastViewedTime"`
}

func (s *Server) handlePutBookmark(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		problem.Write(w, r, http.StatusNotImplemented, "exposure/bookmarks_disabled", "Not Implemented", "BOOKMARKS_DISABLED", "", nil)
		return
	}
	assetID := chi.URLParam(r, "assetId")
	if _, ok := s.catalog.program(assetID); !ok {
		writeExposureError(w, http.StatusNotFound, MsgUnknownAsset)
		return
	}

	var body bookmarkRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		problem.Write(w, r, http.StatusBadRequest, "exposure/bad_request", "Bad Request", "INVALID_BODY", err.Error(), nil)
		return
	}
	if body.LastViewedOffset == nil && body.LastViewedTime == nil {
		problem.Write(w, r, http.StatusBadRequest, "exposure/bad_request", "Bad Request", "EMPTY_BOOKMARK",
			"lastViewedOffset or lastViewedTime is required", nil)
		return
	}

	bm := &resume.Bookmark{OffsetMs: body.LastViewedOffset, TimeMs: body.LastViewedTime, UpdatedAt: s.now().UTC()}
	if err := s.store.Put(r.Context(), principalFrom(r.Context()), assetID, bm); err != nil {
		log := xglog.WithContext(r.Context(), s.logger)
		log.Error().Err(err).Str(xglog.FieldEvent, "bookmark.put_failed").Str(xglog.FieldAssetID, assetID).Msg("store bookmark")
		problem.Write(w, r, http.StatusInternalServerError, "system/internal", "Internal Server Error", "STORE_FAILED", "", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) bookmark(ctx context.Context, assetID string) *resume.Bookmark {
	if s.store == nil {
		return nil
	}
	bm, err := s.store.Get(ctx, principalFrom(ctx), assetID)
	if err != nil {
		log := xglog.WithContext(ctx, s.logger)
		log.Warn().Err(err).Str(xglog.FieldAssetID, assetID).Msg("bookmark lookup failed")
		return nil
	}
	if bm == nil || bm.Empty() {
		return nil
	}
	return bm
}

func (s *Server) logPlay(r *http.Request, assetID string, variant model.MediaVariant, status int) {
	log := xglog.WithContext(r.Context(), s.logger)
	log.Debug().
		Str(xglog.FieldEvent, "exposure.play").
		Str(xglog.FieldAssetID, assetID).
		Str(xglog.FieldVariant, string(variant)).
		Int(xglog.FieldHTTPStatus, status).
		Msg("entitlement requested")
}

func denyReason(p Program) string {
	if p.DenyReason != "" {
		return p.DenyReason
	}
	return MsgNotEntitled
}

type exposureError struct {
	HTTPCode int    `json:"httpCode"`
	Message  string `json:"message"`
}

func writeExposureError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, exposureError{HTTPCode: status, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		xglog.L().Debug().Err(err).Msg("write response")
	}
}
