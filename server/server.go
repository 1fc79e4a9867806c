// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

// Package server is the HTTP boundary: it maps core operations onto
// JSON endpoints and translates typed pipeline errors into statuses.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"strategos/core/advisor/agent"
	"strategos/core/advisor/approval"
	"strategos/core/advisor/audit"
	"strategos/core/advisor/llm"
	"strategos/core/shared/logger"
)

// Advisor is the slice of the lifecycle the server needs.
type Advisor interface {
	Process(ctx context.Context, query string, constraints map[string]string) (*agent.Outcome, error)
}

// Server wires the advisory core to HTTP.
type Server struct {
	advisor   Advisor
	workflow  *approval.Workflow
	router    *llm.Router
	trail     audit.Trail
	logger    *logger.Logger
	jwtSecret []byte
	handler   http.Handler
}

// Options configures optional server behavior.
type Options struct {
	JWTSecret   string
	CORSOrigins []string
}

// New builds the server and its route table.
func New(advisor Advisor, workflow *approval.Workflow, router *llm.Router, trail audit.Trail, opts Options) *Server {
	s := &Server{
		advisor:   advisor,
		workflow:  workflow,
		router:    router,
		trail:     trail,
		logger:    logger.New("api-server"),
		jwtSecret: []byte(opts.JWTSecret),
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/api/v1/query", s.handleQuery).Methods("POST")
	r.HandleFunc("/api/v1/providers/status", s.handleProviderStatus).Methods("GET")

	approvals := r.PathPrefix("/api/v1/approvals").Subrouter()
	approvals.Use(s.requireJWT)
	approvals.HandleFunc("", s.handleListApprovals).Methods("GET")
	approvals.HandleFunc("/stats", s.handleApprovalStats).Methods("GET")
	approvals.HandleFunc("/{id}", s.handleGetApproval).Methods("GET")
	approvals.HandleFunc("/{id}/approve", s.handleApprove).Methods("POST")
	approvals.HandleFunc("/{id}/reject", s.handleReject).Methods("POST")

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	s.handler = c.Handler(r)
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

type queryRequest struct {
	Query       string            `json:"query"`
	Constraints map[string]string `json:"constraints,omitempty"`
}

type queryResponse struct {
	ID         string          `json:"id"`
	Proposal   *agent.Proposal `json:"proposal"`
	ApprovalID string          `json:"approval_id,omitempty"`
	AuditLog   []audit.Event   `json:"audit_log,omitempty"`
}

// handleQuery runs the pipeline and, when the proposal is gated,
// submits it for approval in the same request.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Query == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}

	outcome, err := s.advisor.Process(r.Context(), req.Query, req.Constraints)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	resp := queryResponse{ID: outcome.ID, Proposal: outcome.Proposal}
	if outcome.Proposal != nil && outcome.Proposal.RequiresHumanApproval {
		raw, err := json.Marshal(outcome.Proposal)
		if err == nil {
			approvalReq, submitErr := s.workflow.Submit(r.Context(), outcome.ID, raw, approval.PriorityNormal)
			if submitErr != nil {
				s.logger.ErrorWith(outcome.ID, "approval submission failed", submitErr, nil)
			} else {
				resp.ApprovalID = approvalReq.ID
			}
		}
	}
	if events, err := s.trail.List(r.Context(), outcome.ID); err == nil {
		resp.AuditLog = events
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// writePipelineError maps typed pipeline errors onto HTTP statuses.
func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	var (
		insufficientErr *agent.InsufficientDataError
		loopErr         *agent.LoopDetectedError
		safetyErr       *agent.SafetyViolationError
		exhaustedErr    *llm.ExhaustedError
	)
	switch {
	case errors.As(err, &insufficientErr):
		s.writeError(w, http.StatusUnprocessableEntity, "insufficient_data", err.Error())
	case errors.As(err, &loopErr):
		s.writeError(w, http.StatusTooManyRequests, "loop_detected", err.Error())
	case errors.As(err, &safetyErr):
		s.writeError(w, http.StatusUnavailableForLegalReasons, "safety_blocked", err.Error())
	case errors.As(err, &exhaustedErr):
		s.writeError(w, http.StatusBadGateway, "providers_exhausted", err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

type resolveRequest struct {
	Notes  string `json:"notes,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body resolveRequest
	_ = json.NewDecoder(r.Body).Decode(&body)

	req, err := s.workflow.Approve(r.Context(), id, approverFrom(r), body.Notes)
	if err != nil {
		s.writeApprovalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body resolveRequest
	_ = json.NewDecoder(r.Body).Decode(&body)

	req, err := s.workflow.Reject(r.Context(), id, approverFrom(r), body.Reason)
	if err != nil {
		s.writeApprovalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleGetApproval(w http.ResponseWriter, r *http.Request) {
	req, err := s.workflow.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeApprovalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	// Only the pending view is exposed; resolved requests are reached by id.
	pending, err := s.workflow.GetPending(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if pending == nil {
		pending = []*approval.Request{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"approvals": pending})
}

func (s *Server) handleApprovalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.workflow.GetStats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) writeApprovalError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, approval.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, approval.ErrStateConflict):
		s.writeError(w, http.StatusConflict, "state_conflict", err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func (s *Server) handleProviderStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": s.router.Status(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.ErrorWith("", "failed to encode response", err, nil)
	}
}

type apiError struct {
	Error apiErrorDetail `json:"error"`
}

type apiErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, apiError{Error: apiErrorDetail{Code: code, Message: message}})
}
