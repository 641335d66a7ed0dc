package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/hyperjump/kotae/internal/artifact"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"go.uber.org/zap"
)

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("query request", zap.String("q", req.Q), zap.Int("k", req.K))
	resp, err := s.engine.Answer(r.Context(), &req)
	if err != nil {
		s.respondFailure(w, "query", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	res, err := s.reindexer.Run(r.Context())
	if err != nil {
		s.respondFailure(w, "index", err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, StatusOf(s.snapshots.Current(), s.config))
}

// StatusOf describes snap (nil when nothing is loaded) and the active configuration.
func StatusOf(snap *artifact.Snapshot, cfg *config.Config) models.Status {
	var status models.Status
	if snap != nil {
		status.Index = models.IndexStatus{
			Loaded:           true,
			BuildID:          snap.BuildID,
			Vectors:          snap.Index.Size(),
			Documents:        snap.Documents,
			IndexFingerprint: snap.IndexFingerprint,
			MetaFingerprint:  snap.MetaFingerprint,
			LoadedAt:         snap.LoadedAt,
		}
	}
	configInfo := map[string]any{
		"storage_backend": cfg.Storage.Backend,
		"docs_prefix":     cfg.Storage.DocsPrefix,
		"index_prefix":    cfg.Storage.IndexPrefix,
		"embed_model_id":  cfg.Models.EmbedModelID,
		"chat_model_id":   cfg.Models.ChatModelID,
		"embed_dim":       cfg.Models.EmbedDim,
		"chunk_size":      cfg.Index.ChunkSize,
		"chunk_overlap":   cfg.Index.ChunkOverlap,
		"top_k":           cfg.Query.TopK,
		"max_docs":        cfg.Query.MaxDocs,
		"context_chars":   cfg.Query.ContextChars,
	}
	status.Config = configInfo

	var local string
	switch cfg.Storage.Backend {
	case "disk":
		local = cfg.Storage.Root
		configInfo["root"] = local
	case "sqlite":
		local = cfg.Storage.DatabasePath
		configInfo["database_path"] = local
	default:
		configInfo["bucket"] = cfg.Storage.Bucket
	}
	if local != "" {
		if n, err := storage.DiskUsageBytes(local); err == nil {
			status.DiskUsageBytes = &n
		}
	}
	return status
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrUpstreamUnavailable), errors.Is(err, models.ErrInvalidResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondFailure(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusBadRequest {
		msg = strings.TrimPrefix(msg, models.ErrInvalidRequest.Error()+": ")
	} else {
		s.logger.Error(op+" failed", zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, msg)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
