package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"plannerd/internal/orchestrator"
	"plannerd/internal/planning"
	"plannerd/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// dialogueRequest starts or continues the pre-approval conversation.
type dialogueRequest struct {
	Input planning.PlanningInput `json:"input"`
}

func (s *Server) handleDialogue(w http.ResponseWriter, r *http.Request) {
	var req dialogueRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Input.AdminInstructions) == "" {
		writeError(w, http.StatusBadRequest, "adminInstructions is required")
		return
	}
	if len(req.Input.TeamMembers) == 0 {
		writeError(w, http.StatusBadRequest, "at least one team member is required")
		return
	}

	out, err := s.orch.StartDialogue(r.Context(), req.Input)
	if err != nil {
		s.log.Error("dialogue failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// executeRequest runs (or resumes) the approved pipeline.
type executeRequest struct {
	SessionID string                 `json:"sessionId"`
	Input     planning.PlanningInput `json:"input"`
	Approval  planning.Approval      `json:"approval"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !req.Approval.Approved {
		writeError(w, http.StatusBadRequest, "approval.approved must be true")
		return
	}
	if len(req.Input.TeamMembers) == 0 {
		writeError(w, http.StatusBadRequest, "at least one team member is required")
		return
	}

	out, err := s.orch.ExecuteApprovedPlan(r.Context(), req.SessionID, req.Input, req.Approval)
	if err != nil {
		s.log.Error("execute failed", zap.String("session", req.SessionID), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// reviewRequest carries one checkpoint interaction.
type reviewRequest struct {
	SessionID string                     `json:"sessionId"`
	Input     planning.PlanningInput     `json:"input"`
	Review    orchestrator.ReviewRequest `json:"review"`
}

func (s *Server) handleSelectionReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	out, err := s.orch.ApplySelectionReview(r.Context(), req.SessionID, req.Input, req.Review)
	if err != nil {
		status := http.StatusBadGateway
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "no selection") {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAssignmentReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	out, err := s.orch.ApplyAssignmentReview(r.Context(), req.SessionID, req.Input, req.Review)
	if err != nil {
		status := http.StatusBadGateway
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "no assignments") {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	teamID := r.URL.Query().Get("teamId")
	weekStart := r.URL.Query().Get("weekStart")
	if teamID == "" || weekStart == "" {
		writeError(w, http.StatusBadRequest, "teamId and weekStart query parameters are required")
		return
	}
	week, err := time.Parse("2006-01-02", weekStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "weekStart must be a YYYY-MM-DD date")
		return
	}
	version := 0 // latest
	if v := r.URL.Query().Get("version"); v != "" {
		version, err = strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "version must be an integer")
			return
		}
	}

	doc, err := s.store.LoadPlan(teamID, week, version)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no plan stored for that team and week")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId query parameter is required")
		return
	}

	prefs, err := s.store.LoadPreferences(userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Reviews are opt-out; absent preferences mean every
			// checkpoint pauses.
			defaults := planning.DefaultSkipPreferences()
			writeJSON(w, http.StatusOK, defaults)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// putPreferencesRequest stores a user's skip policy and optionally
// attaches it to a live session.
type putPreferencesRequest struct {
	UserID      string                   `json:"userId"`
	SessionID   string                   `json:"sessionId,omitempty"`
	Preferences planning.SkipPreferences `json:"preferences"`
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var req putPreferencesRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	if err := s.store.SavePreferences(req.UserID, req.Preferences); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if req.SessionID != "" {
		s.orch.SetSkipPreferences(req.SessionID, req.Preferences)
	}
	writeJSON(w, http.StatusOK, req.Preferences)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
