package http

import (
	"mime"
	"net/http"

	"envelopes/internal/core"
	"envelopes/internal/importer"
	"envelopes/internal/ledger"
	"envelopes/internal/services"
)

type balanceView struct {
	ledger.Balance
	Display string `json:"display"`
}

type balancesResponse struct {
	Balances []balanceView `json:"balances"`
	Total    core.Pennies  `json:"total"`
	Display  string        `json:"display"`
}

type importRequest struct {
	Rows []importer.Row `json:"rows"`
}

type importResponse struct {
	services.ImportResult
	Rejected []string `json:"rejected"`
}

type tagsRequest struct {
	Buckets []core.Bucket `json:"buckets"`
}

// handleBalances supports ?type=account|envelope.
func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	var (
		balances []ledger.Balance
		err      error
	)
	if typ := sanitizeInput(r.URL.Query().Get("type")); typ != "" {
		bt := core.BucketType(typ)
		if err := bt.Validate(); err != nil {
			writeError(w, r, badRequest{err})
			return
		}
		balances, err = s.svc.Ledger.BalancesOf(r.Context(), bt)
		if err != nil {
			writeError(w, r, err)
			return
		}
	} else {
		balances, err = s.svc.Ledger.Balances(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	views := make([]balanceView, 0, len(balances))
	for _, b := range balances {
		views = append(views, balanceView{Balance: b, Display: b.Balance.Format(s.currency)})
	}
	total := ledger.Total(balances)
	writeJSON(w, http.StatusOK, balancesResponse{Balances: views, Total: total, Display: total.Format(s.currency)})
}

// handleImport takes either a CSV export (text/csv) or {"rows": [...]}.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var rows []importer.Row
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "text/csv" {
		parsed, err := importer.ReadCSV(r.Body)
		if err != nil {
			writeError(w, r, badRequest{err})
			return
		}
		rows = parsed
	} else {
		var req importRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		rows = req.Rows
	}

	res, err := s.svc.Imports.Import(r.Context(), rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{ImportResult: res, Rejected: res.RejectedMessages()})
}

func (s *Server) handleListBuckets(w http.ResponseWriter, r *http.Request) {
	buckets, err := s.svc.Buckets.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"buckets": buckets})
}

func (s *Server) handleCreateBucket(w http.ResponseWriter, r *http.Request) {
	var b core.Bucket
	if err := decodeJSON(r, &b); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.svc.Buckets.Save(r.Context(), b)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleSaveTags(w http.ResponseWriter, r *http.Request) {
	var req tagsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.svc.Buckets.SaveTags(r.Context(), req.Buckets)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}
