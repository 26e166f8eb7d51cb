package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

type appHandler func(http.ResponseWriter, *http.Request) error

func (fn appHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := fn(w, r)
	if err == nil {
		return
	}
	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	if e, ok := err.(*AppError); ok {
		replyJSON(w, e, e.Code)
		return
	}
	if code := httpStatus(err); code != http.StatusInternalServerError {
		replyJSON(w, &AppError{code, err.Error()}, code)
		return
	}
	http.Error(w, fmt.Sprintf("Internal server error: %v", err), http.StatusInternalServerError)
}

// Identity context headers, supplied by the fronting gateway and trusted
// verbatim; the service performs no authentication itself.
const (
	headerTenant = "X-Tenant-ID"
	headerOwner  = "X-Owner-ID"
)

func tenantID(r *http.Request) (string, error) {
	tenant := r.Header.Get(headerTenant)
	if tenant == "" {
		return "", &AppError{http.StatusBadRequest, fmt.Sprintf("%s header must be required", headerTenant)}
	}
	return tenant, nil
}

func ownerID(r *http.Request) string {
	return r.Header.Get(headerOwner)
}

// SetupRoutes registers the API endpoints to the router.
func (c *Controller) SetupRoutes(r *mux.Router) {
	r.Methods("POST").Path("/fieldstream/v1/recordings").Handler(appHandler(c.createRecording))
	r.Methods("GET").Path("/fieldstream/v1/recordings/{id}").Handler(appHandler(c.getRecording))
	r.Methods("GET").Path("/fieldstream/v1/recordings/{id}/stream").Handler(appHandler(c.streamRecording))
	r.Methods("POST").Path("/upload/fieldstream/v1/uploads/{id}/parts/{partNumber}").Handler(appHandler(c.partCredential))
	r.Methods("POST").Path("/upload/fieldstream/v1/uploads/{id}/complete").Handler(appHandler(c.completeUpload))
	r.Methods("DELETE").Path("/upload/fieldstream/v1/uploads/{id}").Handler(appHandler(c.abortUpload))
	r.Methods("POST").Path("/upload/fieldstream/v1/sessions").Handler(appHandler(c.startSession))
	r.Methods("PUT").Path("/upload/fieldstream/v1/sessions/{id}/chunks/{index}").Handler(appHandler(c.submitChunk))
	r.Methods("GET").Path("/upload/fieldstream/v1/sessions/{id}").Handler(appHandler(c.sessionStatus))
	r.Methods("DELETE").Path("/upload/fieldstream/v1/sessions/{id}").Handler(appHandler(c.cancelSession))
}

// Parse incoming request body as JSON object.
func parseJSON(w http.ResponseWriter, r *http.Request, data interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		return err
	}
	return nil
}

// Respond the output with JSON format to the client.
func replyJSON(w http.ResponseWriter, data interface{}, code int) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return err
	}
	return nil
}
