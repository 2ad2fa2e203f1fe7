package api

import (
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/heliplan/heliplan-core/internal/store"
)

// variablesResponse is the response body for GET /variables/{ns}.
type variablesResponse struct {
	Namespace string            `json:"namespace"`
	Values    map[string]string `json:"values"`
	Count     int               `json:"count"`
}

// handleVariables returns every key/value pair in one store namespace.
// An unknown namespace reads as empty, matching the store contract:
// namespaces exist once something is written into them.
func (s *Server) handleVariables(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "ns")
	if ns == "" {
		writeBadRequest(w, "namespace is required")
		return
	}

	keys, err := s.store.Keys(r.Context(), ns)
	if err != nil {
		s.logger.Error("listing namespace keys failed", "namespace", ns, "error", err)
		writeInternalError(w, "store read failed")
		return
	}
	sort.Strings(keys)

	values := make(map[string]string, len(keys))
	for _, key := range keys {
		value, err := s.store.Get(r.Context(), ns, key)
		if errors.Is(err, store.ErrKeyNotFound) {
			continue // deleted between Keys and Get
		}
		if err != nil {
			s.logger.Error("reading variable failed", "namespace", ns, "key", key, "error", err)
			writeInternalError(w, "store read failed")
			return
		}
		values[key] = value
	}

	writeJSON(w, http.StatusOK, variablesResponse{
		Namespace: ns,
		Values:    values,
		Count:     len(values),
	})
}
