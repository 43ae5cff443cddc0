package api

import (
	"errors"
	"net/http"

	"github.com/fmuoria/fair-hire/internal/models"
)

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var j models.Job
	if err := s.decodeJSON(w, r, &j); err != nil {
		s.respondErr(w, err)
		return
	}
	j.ID = ""
	if err := j.Validate(); err != nil {
		s.respondErr(w, badRequest(err))
		return
	}

	if err := s.store.CreateJob(r.Context(), &j); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, j)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context(), listOptions(r))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if jobs == nil {
		jobs = []*models.Job{}
	}
	s.respondJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, j)
}

func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	var j models.Job
	if err := s.decodeJSON(w, r, &j); err != nil {
		s.respondErr(w, err)
		return
	}
	j.ID = r.PathValue("id")
	if err := j.Validate(); err != nil {
		s.respondErr(w, badRequest(err))
		return
	}

	if err := s.store.UpdateJob(r.Context(), &j); err != nil {
		s.respondErr(w, err)
		return
	}
	updated, err := s.store.GetJob(r.Context(), j.ID)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteJob(r.Context(), r.PathValue("id")); err != nil {
		s.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type applyRequest struct {
	CandidateID string `json:"candidate_id"`
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondErr(w, err)
		return
	}
	if req.CandidateID == "" {
		s.respondErr(w, badRequest(errors.New("candidate_id is required")))
		return
	}

	app := &models.Application{JobID: r.PathValue("id"), CandidateID: req.CandidateID}
	if err := s.store.CreateApplication(r.Context(), app); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, app)
}

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := s.store.ListApplications(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if apps == nil {
		apps = []*models.Application{}
	}
	s.respondJSON(w, http.StatusOK, apps)
}

type qualifiedRequest struct {
	Qualified *bool `json:"qualified"` // null clears the label
}

func (s *Server) handleSetQualified(w http.ResponseWriter, r *http.Request) {
	var req qualifiedRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondErr(w, err)
		return
	}

	id := r.PathValue("id")
	if err := s.store.SetQualified(r.Context(), id, req.Qualified); err != nil {
		s.respondErr(w, err)
		return
	}
	app, err := s.store.GetApplication(r.Context(), id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, app)
}

func (s *Server) handleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteApplication(r.Context(), r.PathValue("id")); err != nil {
		s.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
