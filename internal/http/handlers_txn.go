package http

import (
	"encoding/json"
	"net/http"

	"envelopes/internal/core"
)

type txnListResponse struct {
	Transactions []json.RawMessage `json:"transactions"`
	Count        int               `json:"count"`
}

// handleListTransactions supports ?type=<tag> and ?account=<bucket id>.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		txns []core.Transaction
		err  error
	)
	if account := sanitizeInput(q.Get("account")); account != "" {
		txns, err = s.svc.Ledger.ListForAccount(r.Context(), account)
	} else {
		txns, err = s.svc.Ledger.List(r.Context(), core.TxnType(sanitizeInput(q.Get("type"))))
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	docs, err := encodeAll(txns)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txnListResponse{Transactions: docs, Count: len(docs)})
}

// handleCreateTransaction accepts one canonical transaction document. A
// missing id is generated.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	txn, err := core.DecodeTransaction(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txn.Type() == core.TypeFill {
		writeError(w, r, badRequest{errFillsViaGroups})
		return
	}
	txn = core.WithID(txn, s.svc.IDs)
	if err := s.svc.Ledger.Save(r.Context(), txn); err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := core.EncodeTransaction(txn)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/transactions/"+txn.Head().ID)
	writeJSON(w, http.StatusCreated, json.RawMessage(doc))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := s.svc.Ledger.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := core.EncodeTransaction(txn)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, json.RawMessage(doc))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ledger.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func encodeAll[T core.Transaction](txns []T) ([]json.RawMessage, error) {
	docs := make([]json.RawMessage, 0, len(txns))
	for _, t := range txns {
		doc, err := core.EncodeTransaction(t)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
