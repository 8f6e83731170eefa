// Package server is the HTTP boundary. The only endpoint with real logic
// behind it is the chunk upload; the session routes are CRUD glue.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/yipson/mental-health-assistant/pkg/audio"
	"github.com/yipson/mental-health-assistant/pkg/meta"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Server struct {
	audio          *audio.Service
	repo           *meta.Repository
	maxUploadBytes int64
	log            zerolog.Logger
}

func New(audioSvc *audio.Service, repo *meta.Repository, maxUploadBytes int64, log zerolog.Logger) *Server {
	return &Server{
		audio:          audioSvc,
		repo:           repo,
		maxUploadBytes: maxUploadBytes,
		log:            log.With().Str("component", "http").Logger(),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/audio/upload-chunk", s.handleUploadChunk)
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}", s.handleGetSession)
	})
	return r
}

type chunkResponse struct {
	Success     bool   `json:"success"`
	Filename    string `json:"filename,omitempty"`
	ChunkIndex  int    `json:"chunkIndex"`
	IsLastChunk bool   `json:"isLastChunk"`
	Message     string `json:"message,omitempty"`
}

func (s *Server) handleUploadChunk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	sessionID, err := strconv.ParseInt(r.FormValue("sessionId"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid sessionId")
		return
	}
	chunkIndex, err := strconv.Atoi(r.FormValue("chunkIndex"))
	if err != nil || chunkIndex < 0 {
		s.writeError(w, http.StatusBadRequest, "invalid chunkIndex")
		return
	}
	isLast, err := strconv.ParseBool(r.FormValue("isLastChunk"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid isLastChunk")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "could not read file: "+err.Error())
		return
	}

	chunk, err := s.audio.IngestChunk(r.Context(), audio.IngestInput{
		SessionID:   sessionID,
		ChunkIndex:  chunkIndex,
		IsLast:      isLast,
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
		UploadName:  header.Filename,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, meta.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		s.writeError(w, status, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, chunkResponse{
		Success:     true,
		Filename:    chunk.Filename,
		ChunkIndex:  chunk.ChunkIndex,
		IsLastChunk: chunk.IsLast,
	})
}

type sessionRequest struct {
	Title string `json:"title"`
	Notes string `json:"notes"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session := &meta.Session{Title: req.Title, Notes: req.Notes}
	if err := s.repo.CreateSession(r.Context(), session); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.repo.Sessions(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	session, err := s.repo.FindSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, meta.ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, session)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("could not encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, chunkResponse{Success: false, Message: message})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
