package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/getgrove/grove/pkg/action"
	"github.com/getgrove/grove/pkg/batch"
	"github.com/getgrove/grove/pkg/codec"
)

// ErrorResponse is the JSON body of error replies.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Version    string   `json:"version"`
	Uptime     string   `json:"uptime"`
	Operations []string `json:"operations"`
	Derived    []string `json:"derived"`
	Observers  int      `json:"observers"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, errCode, message string) {
	writeJSON(w, status, ErrorResponse{Error: errCode, Message: message})
}

// handleHealth handles GET /health.
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Uptime: a.Uptime()})
}

// handleStatus handles GET /status.
func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	ops := a.store.Operations()
	derived := a.store.DerivedNames()
	sort.Strings(ops)
	sort.Strings(derived)

	writeJSON(w, http.StatusOK, StatusResponse{
		Version:    a.version,
		Uptime:     a.Uptime(),
		Operations: ops,
		Derived:    derived,
		Observers:  a.store.Observers(),
	})
}

// handleGetState handles GET /state: the current snapshot.
func (a *API) handleGetState(w http.ResponseWriter, r *http.Request) {
	snapshot, err := a.store.Snapshot()
	if err != nil {
		var serr *codec.SerializationError
		if errors.As(err, &serr) {
			writeError(w, http.StatusUnprocessableEntity, "unserializable", err.Error())
			return
		}
		a.log.Error("snapshot failed", "error", err)
		writeError(w, http.StatusInternalServerError, "snapshot_failed", "could not snapshot state")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleRehydrate handles PUT /state: replace state from a snapshot.
func (a *API) handleRehydrate(w http.ResponseWriter, r *http.Request) {
	var snapshot map[string]any
	if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON in request body")
		return
	}
	if err := a.store.Rehydrate(r.Context(), snapshot); err != nil {
		a.log.Error("rehydrate failed", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "rehydrate_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// handleRunOperation handles POST /operations/{name}. The request body
// is the operation payload; the response is the operation result.
func (a *API) handleRunOperation(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var payload any
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON in request body")
			return
		}
	}

	result, err := a.store.Run(r.Context(), name, payload)
	if err != nil {
		var uerr *action.UnknownOperationError
		if errors.As(err, &uerr) {
			writeError(w, http.StatusNotFound, "unknown_operation", err.Error())
			return
		}
		var merr *batch.MutationOutsideActionError
		if errors.As(err, &merr) {
			writeError(w, http.StatusConflict, "mutation_rejected", err.Error())
			return
		}
		a.log.Error("operation failed", "operation", name, "error", err)
		writeError(w, http.StatusUnprocessableEntity, "operation_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

// handleGetDerived handles GET /derived/{name}.
func (a *API) handleGetDerived(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	v, err := a.store.Derived(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_derived", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"value": v})
}

// handleGetLog handles GET /log: the mutation log, when enabled.
func (a *API) handleGetLog(w http.ResponseWriter, r *http.Request) {
	log := a.store.MutationLog()
	if log == nil {
		writeError(w, http.StatusNotFound, "log_disabled", "mutation log is not enabled on this store")
		return
	}
	writeJSON(w, http.StatusOK, log.Entries())
}

// handleReplay handles POST /replay: apply a mutation log.
func (a *API) handleReplay(w http.ResponseWriter, r *http.Request) {
	var entries []codec.LogEntry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON in request body")
		return
	}
	if err := a.store.Replay(r.Context(), entries); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "replay_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
