package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-hub/internal/discovery"
	"github.com/nerrad567/gray-logic-hub/internal/discovery/journal"
	"github.com/nerrad567/gray-logic-hub/internal/hub"
)

// Journal listing bounds.
const (
	defaultJournalLimit = 100
	maxJournalLimit     = 1000
)

// announceRequest is the request body for POST /discovery/announce.
type announceRequest struct {
	Service string         `json:"service"`
	Info    discovery.Info `json:"info"`
}

// loadPlatformRequest is the request body for POST /platforms/load.
type loadPlatformRequest struct {
	Component  string         `json:"component"`
	Platform   string         `json:"platform"`
	Discovered discovery.Info `json:"discovered"`
}

// handleListServices returns the service catalog.
func (s *Server) handleListServices(w http.ResponseWriter, _ *http.Request) {
	entries := s.catalog.Entries()
	writeJSON(w, http.StatusOK, map[string]any{
		"services": entries,
		"count":    len(entries),
	})
}

// handleSeen returns the size of the already-discovered set.
func (s *Server) handleSeen(w http.ResponseWriter, r *http.Request) {
	n, err := s.scan.SeenCount(r.Context())
	if err != nil {
		s.logger.Error("reading seen count", "error", err)
		writeInternalError(w, "failed to read discovery state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}

// handleListJournal returns the most recent journal entries.
func (s *Server) handleListJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "discovery journal is disabled")
		return
	}

	limit := defaultJournalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxJournalLimit)
	}

	entries, err := s.journal.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing journal", "error", err)
		writeInternalError(w, "failed to list journal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleGetJournalEntry returns one journal entry by fingerprint.
func (s *Server) handleGetJournalEntry(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "discovery journal is disabled")
		return
	}

	entry, err := s.journal.Get(r.Context(), chi.URLParam(r, "fingerprint"))
	if errors.Is(err, journal.ErrNotFound) {
		writeNotFound(w, "journal entry not found")
		return
	}
	if err != nil {
		s.logger.Error("reading journal entry", "error", err)
		writeInternalError(w, "failed to read journal entry")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleListComponents returns registered and loaded components.
func (s *Server) handleListComponents(w http.ResponseWriter, r *http.Request) {
	loaded, err := s.components.LoadedSnapshot(r.Context())
	if err != nil {
		s.logger.Error("reading loaded components", "error", err)
		writeInternalError(w, "failed to read component state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"registered": s.components.Registered(),
		"loaded":     loaded,
	})
}

// handleComponentPlatforms returns the platforms announced to a domain.
func (s *Server) handleComponentPlatforms(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	platforms, err := s.inspector.Platforms(r.Context(), name)
	if errors.Is(err, hub.ErrUnknownComponent) {
		writeNotFound(w, "no entity domain named "+name)
		return
	}
	if err != nil {
		s.logger.Error("reading platforms", "component", name, "error", err)
		writeInternalError(w, "failed to read platforms")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"component": name,
		"platforms": platforms,
	})
}

// handleComponentDevices returns the devices tracked by an integration.
func (s *Server) handleComponentDevices(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	devices, err := s.inspector.Devices(r.Context(), name)
	if errors.Is(err, hub.ErrUnknownComponent) {
		writeNotFound(w, "no integration named "+name)
		return
	}
	if err != nil {
		s.logger.Error("reading devices", "component", name, "error", err)
		writeInternalError(w, "failed to read devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"component": name,
		"devices":   devices,
	})
}

// handleScan runs every scanner once and reports how many were found.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	found, err := s.scan.ScanNow(r.Context())
	resp := map[string]any{"found": found}
	if err != nil {
		// Partial results still went through the pipeline.
		s.logger.Warn("manual scan reported errors", "error", err)
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAnnounce pushes a device announcement into the scan pipeline.
// Deduplication and the ignore/enable policy apply as for scanned devices.
func (s *Server) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	var req announceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Service == "" {
		writeValidationError(w, "service is required")
		return
	}

	s.scan.Found(discovery.Service(req.Service), req.Info)
	s.logger.Info("device announced over API",
		"service", req.Service,
		"subject", r.Context().Value(ctxKeySubject),
	)
	writeJSON(w, http.StatusAccepted, map[string]any{"service": req.Service, "status": "accepted"})
}

// handleLoadPlatform asks a component to load a platform. The load runs
// asynchronously; failures only show up in logs and the platform listing.
func (s *Server) handleLoadPlatform(w http.ResponseWriter, r *http.Request) {
	var req loadPlatformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	err := s.platforms.LoadPlatform(req.Component, req.Platform, req.Discovered, s.compCfg)
	if errors.Is(err, discovery.ErrInvalidComponent) {
		writeValidationError(w, "component and platform are required")
		return
	}
	if err != nil {
		s.logger.Error("loading platform", "component", req.Component, "platform", req.Platform, "error", err)
		writeInternalError(w, "failed to schedule platform load")
		return
	}

	s.logger.Info("platform load requested over API",
		"component", req.Component,
		"platform", req.Platform,
		"subject", r.Context().Value(ctxKeySubject),
	)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"component": req.Component,
		"platform":  req.Platform,
		"status":    "scheduled",
	})
}
