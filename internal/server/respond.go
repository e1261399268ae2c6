package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/event"
	"github.com/RegistryAccord/vidhub-go/internal/present"
	"github.com/RegistryAccord/vidhub-go/internal/session"
)

// page is the envelope every app route returns: the session, the sidebar for
// the current path, and the page state itself.
type page struct {
	Session session.State     `json:"session"`
	Nav     []present.NavItem `json:"nav"`
	Page    interface{}       `json:"page"`
}

func notFound(msg string) *errordefs.Error   { return errordefs.New(errordefs.VH_NOT_FOUND, msg, "") }
func badRequest(msg string) *errordefs.Error { return errordefs.New(errordefs.VH_BAD_REQUEST, msg, "") }

// writeSuccess writes a successful response
func (s *Server) writeSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]interface{}{
		"data": data,
	}
	_ = json.NewEncoder(w).Encode(response)
}

// writePage wraps state in the page envelope for the request's session.
func (s *Server) writePage(w http.ResponseWriter, r *http.Request, state interface{}) {
	st := providerFrom(r.Context()).Current()
	s.writeSuccess(w, http.StatusOK, page{
		Session: st,
		Nav:     present.SidebarNav(st.SignedIn(), r.URL.Path),
		Page:    state,
	})
}

// writeError maps err onto the error taxonomy and writes it. Foreign errors
// are logged and reported as VH_INTERNAL without their text.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	corr := event.CorrelationID(r.Context())
	def, ok := errordefs.As(err)
	if !ok {
		s.logger.ErrorContext(r.Context(), "unhandled error",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
			slog.String("correlation_id", corr))
		def = errordefs.New(errordefs.VH_INTERNAL, "internal error", corr)
	} else {
		def = def.WithCorrelation(corr)
	}
	setErr(r.Context(), def)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(def.HTTPStatus)
	body := map[string]interface{}{
		"code":          def.Code,
		"message":       def.Message,
		"correlationId": def.CorrelationID,
	}
	if def.Details != nil {
		body["details"] = def.Details
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": body})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return badRequest("expected application/json body")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return badRequest("request body is empty")
		}
		return badRequest(fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

// wantsHTML reports whether the client is a browser navigation.
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
