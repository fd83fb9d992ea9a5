package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"envelopes/internal/core"
	"envelopes/internal/fill"
	"envelopes/internal/importer"
	"envelopes/internal/log"
	"envelopes/internal/middleware/trace"
	"envelopes/internal/store"
)

type errorResponse struct {
	Error     string   `json:"error"`
	Messages  []string `json:"messages,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// badRequest marks errors caused by an unreadable request.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

// unprocessable lists sentinels that mean the request was understood but
// describes an impossible ledger entry.
var unprocessable = []error{
	core.ErrMissingTxnID,
	core.ErrUnbalancedTransfer,
	core.ErrSameBucket,
	core.ErrInvalidDay,
	core.ErrInvalidMonth,
	core.ErrInvalidAmount,
	core.ErrInvalidBucketType,
	core.ErrInvalidInterval,
	core.ErrEmptyBucketName,
	core.ErrEmptyBucketID,
	fill.ErrNotEnvelope,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps err to a status code. Unexpected errors are logged and
// reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: err.Error(), RequestID: trace.RequestID(r)}
	status := errorStatus(err)

	var verr *core.ValidationError
	if errors.As(err, &verr) {
		resp.Error = "validation failed"
		resp.Messages = verr.Messages
	}
	if status == http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err.Error(), log.FieldPath, r.URL.Path)
		resp.Error = "internal error"
	}
	writeJSON(w, status, resp)
}

func errorStatus(err error) int {
	var (
		verr   *core.ValidationError
		bad    badRequest
		maxErr *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &bad),
		errors.Is(err, core.ErrMalformed),
		errors.Is(err, core.ErrUnknownType),
		errors.Is(err, importer.ErrUnclassifiedRow):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, fill.ErrNoUnallocated):
		return http.StatusConflict
	}
	for _, target := range unprocessable {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

// decodeJSON reads exactly one JSON value into v and rejects unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return badRequest{errors.New("request body is empty")}
		}
		return badRequest{fmt.Errorf("decode request: %w", err)}
	}
	return nil
}

// readBody returns the raw request body, bounded by the body middleware.
func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, badRequest{fmt.Errorf("read request: %w", err)}
	}
	return data, nil
}

// sanitizeInput drops control characters and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
