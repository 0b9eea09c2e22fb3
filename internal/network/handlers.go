package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	dberrors "github.com/leengari/dyntable/internal/domain/errors"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

type handlers struct {
	svc TableService
}

type errorResponse struct {
	Error        string   `json:"error"`
	Inconsistent bool     `json:"inconsistent,omitempty"`
	Applied      []string `json:"applied,omitempty"`
	Failed       string   `json:"failed,omitempty"`
}

type rowCreatedResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

// badRequest marks transport-level decoding failures
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func (h *handlers) createTable(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	name := ""
	if raw, ok := body["table_name"]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			writeError(w, &dberrors.SchemaShapeError{Reason: "table_name must be a string"})
			return
		}
		name = s
	}

	rec, err := h.svc.DefineTable(r.Context(), name, body["fields"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *handlers) updateTable(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	body, err := decodeBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rec, err := h.svc.AlterTable(r.Context(), id, body["fields"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handlers) getTable(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.Table(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handlers) listTables(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.Tables(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *handlers) createRow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	body, err := decodeBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rowID, err := h.svc.InsertRow(r.Context(), id, body["data"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rowCreatedResponse{Message: "Row added successfully", ID: rowID})
}

func (h *handlers) listRows(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rows, err := h.svc.ListRows(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return 0, false
	}
	return id, true
}

// decodeBody reads a JSON object, keeping numbers as json.Number. An empty
// body is an empty object.
func decodeBody(r *http.Request) (map[string]interface{}, error) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()

	var body map[string]interface{}
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]interface{}{}, nil
		}
		return nil, &badRequest{msg: fmt.Sprintf("invalid JSON body: %v", err)}
	}
	if body == nil {
		body = map[string]interface{}{}
	}
	return body, nil
}

func statusFor(err error) int {
	var bad *badRequest
	switch {
	case errors.As(err, &bad),
		errors.Is(err, dberrors.ErrUnsupportedFieldType),
		errors.Is(err, dberrors.ErrInvalidSchemaShape),
		errors.Is(err, dberrors.ErrInvalidRowShape),
		errors.Is(err, dberrors.ErrUnknownField),
		errors.Is(err, dberrors.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, dberrors.ErrTableNotFound):
		return http.StatusNotFound
	case errors.Is(err, dberrors.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, dberrors.ErrTableBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var merr *dberrors.MigrationError
	if errors.As(err, &merr) && merr.Inconsistent() {
		resp.Inconsistent = true
		resp.Applied = merr.Applied
		resp.Failed = merr.Failed
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode error", "error", err)
	}
}
