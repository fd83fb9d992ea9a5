package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"envelopes/internal/core"
	"envelopes/internal/fill"
)

var errFillsViaGroups = errors.New("fills are saved through /api/fills")

type planRequest struct {
	Mode fill.Mode `json:"mode"`
}

type saveFillRequest struct {
	Date      string          `json:"date,omitempty"`
	Proposals []fill.Proposal `json:"proposals"`
}

type fillGroupResponse struct {
	TxnID     string            `json:"txn_id"`
	Proposals []fill.Proposal   `json:"proposals,omitempty"`
	Fills     []json.RawMessage `json:"fills,omitempty"`
}

func (s *Server) handlePlanFill(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Mode == "" {
		req.Mode = fill.ModePeriodic
	}
	if req.Mode != fill.ModePeriodic && req.Mode != fill.ModeZeroOut {
		writeError(w, r, badRequest{fmt.Errorf("unknown fill mode %q", req.Mode)})
		return
	}

	plan, err := s.svc.Fills.Plan(r.Context(), req.Mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// handleSaveFill replaces the group in the path, or starts a new group
// when called without one.
func (s *Server) handleSaveFill(w http.ResponseWriter, r *http.Request) {
	var req saveFillRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var date core.Date
	if req.Date != "" {
		d, err := core.ParseDate(req.Date)
		if err != nil {
			writeError(w, r, badRequest{err})
			return
		}
		date = d
	}

	existing := r.PathValue("txnID")
	txnID, fills, err := s.svc.Fills.SaveGroup(r.Context(), existing, date, req.Proposals)
	if err != nil {
		writeError(w, r, err)
		return
	}
	docs, err := encodeAll(fills)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if existing == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, fillGroupResponse{TxnID: txnID, Fills: docs})
}

func (s *Server) handleLoadFill(w http.ResponseWriter, r *http.Request) {
	txnID := r.PathValue("txnID")
	proposals, err := s.svc.Fills.LoadGroup(r.Context(), txnID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fillGroupResponse{TxnID: txnID, Proposals: proposals})
}

func (s *Server) handleDeleteFill(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Fills.DeleteGroup(r.Context(), r.PathValue("txnID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}
