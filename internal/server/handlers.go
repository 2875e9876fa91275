package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"primecheck/internal/pipeline"
)

// maxBodyBytes caps the request body; the parser applies its own input limit.
const maxBodyBytes = 8 << 20

// CheckRequest is the body of POST /v1/check.
type CheckRequest struct {
	Input string `json:"input"`
}

// CheckResponse is returned for verdicts (200) and parse errors (422).
type CheckResponse struct {
	Result  string     `json:"result"`
	Verdict string     `json:"verdict,omitempty"`
	Digits  int        `json:"digits,omitempty"`
	QueryID string     `json:"query_id,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes why no verdict was produced.
type ErrorBody struct {
	Kind     string `json:"kind"`
	Position *int   `json:"position,omitempty"`
	Message  string `json:"message,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(zap.String("request_id", middleware.GetReqID(r.Context())))

	var req CheckRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		log.Debug("Invalid check request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, CheckResponse{
			Result: "Result: -",
			Error:  &ErrorBody{Kind: "bad_request", Message: "invalid request body"},
		})
		return
	}

	ctx := r.Context()
	if d := time.Duration(s.queryTimeout.Load()); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	out, err := s.engine.Load().Check(ctx, req.Input)
	switch {
	case err == nil:
	case r.Context().Err() != nil:
		// Client went away; there is nobody to answer.
		log.Debug("Client disconnected during query", zap.Error(err))
		return
	case errors.Is(err, pipeline.ErrCancelled):
		log.Warn("Query timed out", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, CheckResponse{
			Result: "Result: -",
			Error:  &ErrorBody{Kind: "timeout", Message: "query timed out"},
		})
		return
	default:
		log.Error("Query failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, CheckResponse{
			Result: "Result: -",
			Error:  &ErrorBody{Kind: "internal_error"},
		})
		return
	}

	resp := CheckResponse{Result: out.Message(), QueryID: out.QueryID.String()}
	if pe := out.ParseErr; pe != nil {
		pos := pe.Pos
		resp.Error = &ErrorBody{Kind: pe.Kind.String(), Position: &pos, Message: pe.Reason}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	resp.Verdict = out.Verdict.String()
	resp.Digits = out.Digits
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
