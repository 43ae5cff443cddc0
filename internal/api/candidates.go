package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fmuoria/fair-hire/internal/ingestion"
	"github.com/fmuoria/fair-hire/internal/models"
)

func (s *Server) handleCreateCandidate(w http.ResponseWriter, r *http.Request) {
	var c models.Candidate
	if err := s.decodeJSON(w, r, &c); err != nil {
		s.respondErr(w, err)
		return
	}
	c.ID = ""
	if err := c.Validate(); err != nil {
		s.respondErr(w, badRequest(err))
		return
	}

	if err := s.store.CreateCandidate(r.Context(), &c); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := s.store.ListCandidates(r.Context(), listOptions(r))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if candidates == nil {
		candidates = []*models.Candidate{}
	}
	s.respondJSON(w, http.StatusOK, candidates)
}

func (s *Server) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCandidate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCandidate(w http.ResponseWriter, r *http.Request) {
	var c models.Candidate
	if err := s.decodeJSON(w, r, &c); err != nil {
		s.respondErr(w, err)
		return
	}
	c.ID = r.PathValue("id")
	if err := c.Validate(); err != nil {
		s.respondErr(w, badRequest(err))
		return
	}

	if err := s.store.UpdateCandidate(r.Context(), &c); err != nil {
		s.respondErr(w, err)
		return
	}
	updated, err := s.store.GetCandidate(r.Context(), c.ID)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteCandidate(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteCandidate(r.Context(), r.PathValue("id")); err != nil {
		s.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResume accepts a plain-text resume either as the raw body or as the
// "resume" field of a multipart form. name and job_id come from the query or form.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)

	text, err := s.readResume(r)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	name := formOrQuery(r, "name")
	jobID := formOrQuery(r, "job_id")

	c, err := s.agent.AddResume(r.Context(), text, name, jobID)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.logger.Info("resume added",
		zap.String("candidate_id", c.ID),
		zap.String("job_id", jobID),
		zap.Int("skills", len(c.Skills)),
	)
	s.respondJSON(w, http.StatusCreated, c)
}

func (s *Server) readResume(r *http.Request) (string, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = "text/plain"
	}

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(s.maxBodyBytes); err != nil {
			var maxBytes *http.MaxBytesError
			if errors.As(err, &maxBytes) {
				return "", err
			}
			return "", badRequest(fmt.Errorf("failed to parse form: %w", err))
		}
		file, header, err := r.FormFile("resume")
		if err != nil {
			return "", badRequest(fmt.Errorf("missing resume file: %w", err))
		}
		defer file.Close()

		if !ingestion.SupportedExtension(header.Filename) {
			return "", fmt.Errorf("%w: %s", ingestion.ErrUnsupportedFormat, filepath.Ext(header.Filename))
		}
		data, err := io.ReadAll(file)
		if err != nil {
			return "", fmt.Errorf("failed to read resume file: %w", err)
		}
		return ingestion.DecodeResume(data)

	case "text/plain", "application/octet-stream":
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return "", err
		}
		return ingestion.DecodeResume(data)

	default:
		return "", fmt.Errorf("%w: content type %s", ingestion.ErrUnsupportedFormat, mediaType)
	}
}

func formOrQuery(r *http.Request, key string) string {
	if r.MultipartForm != nil {
		if v := r.FormValue(key); v != "" {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(r.URL.Query().Get(key))
}
