package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/fmuoria/fair-hire/internal/export"
	"github.com/fmuoria/fair-hire/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	report, err := s.agent.ScreenJob(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.agent.Report(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	audit, err := s.agent.Audit(r.Context(), r.PathValue("id"), attributeParam(r))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, audit)
}

// handleExport streams the ranked report and the fairness audit as a workbook
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	report, err := s.agent.Report(r.Context(), jobID)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	audit, err := s.agent.Audit(r.Context(), jobID, attributeParam(r))
	if err != nil {
		s.respondErr(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, report, audit); err != nil {
		s.respondErr(w, fmt.Errorf("failed to build workbook: %w", err))
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFileName(report.Job)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

type scoreRequest struct {
	ResumeText string            `json:"resume_text,omitempty"`
	Candidate  *models.Candidate `json:"candidate,omitempty"`
	Job        models.Job        `json:"job"`
}

type scoreResponse struct {
	Candidate models.Candidate      `json:"candidate"`
	Breakdown models.ScoreBreakdown `json:"breakdown"`
	Decision  models.Decision       `json:"decision"`
}

// handleScore evaluates one candidate against an ad-hoc job without storing anything
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondErr(w, err)
		return
	}
	if err := req.Job.Validate(); err != nil {
		s.respondErr(w, badRequest(err))
		return
	}

	var candidate models.Candidate
	switch {
	case strings.TrimSpace(req.ResumeText) != "":
		parsed, err := s.agent.ParseResume(req.ResumeText)
		if err != nil {
			s.respondErr(w, err)
			return
		}
		candidate = parsed.Candidate()
	case req.Candidate != nil:
		candidate = *req.Candidate
	default:
		s.respondErr(w, badRequest(errors.New("resume_text or candidate is required")))
		return
	}

	breakdown, decision, err := s.agent.Evaluate(candidate, req.Job)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, scoreResponse{
		Candidate: candidate,
		Breakdown: breakdown,
		Decision:  decision,
	})
}

func attributeParam(r *http.Request) string {
	if a := strings.TrimSpace(r.URL.Query().Get("attribute")); a != "" {
		return a
	}
	return defaultAttribute
}

func exportFileName(job models.Job) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, job.Title)
	if name == "" {
		name = "job"
	}
	return "screening_" + name + ".xlsx"
}
