package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/soyeahso/agentstudio/internal/domain"
	"github.com/soyeahso/agentstudio/internal/editor"
	"github.com/soyeahso/agentstudio/internal/studio"
	"github.com/soyeahso/agentstudio/internal/tester"
	"github.com/soyeahso/agentstudio/internal/view"
)

// HealthResponse is returned by health endpoints. The public HTTP endpoint
// only populates Status; the authenticated RPC handler populates all fields.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Clients int    `json:"clients,omitempty"`
	Agents  int    `json:"agents,omitempty"`
	Uptime  int64  `json:"uptimeMs,omitempty"`
}

// handleHealth returns the server health status. Only status is exposed
// publicly; detailed info is available via the authenticated RPC health method.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

// RequestHandler processes an incoming RPC request frame from a client.
type RequestHandler func(rc *RequestContext)

// RequestContext carries everything a handler needs.
type RequestContext struct {
	Ctx    context.Context
	Client *Client
	Frame  Frame
	Server *Server
}

// Studio returns the session driven by the requesting connection.
func (rc *RequestContext) Studio() *studio.Studio {
	return rc.Client.Studio
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	rc.Fail(ErrorShape{Code: code, Message: message})
}

// Fail sends an error response with a prepared shape.
func (rc *RequestContext) Fail(shape ErrorShape) {
	if err := rc.Client.RespondError(rc.Frame.ID, shape); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send error response")
	}
}

// RespondErr maps err onto an error response.
func (rc *RequestContext) RespondErr(err error) {
	shape := errorShape(err)
	if shape.Code == CodeInternal {
		rc.Server.log.Error().Err(err).Str("method", rc.Frame.Method).Msg("request failed")
	}
	rc.Fail(shape)
}

// Params unmarshals the request params into the given target.
func (rc *RequestContext) Params(target any) error {
	if rc.Frame.Params == nil {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}

// errorShape classifies domain errors into protocol error codes.
func errorShape(err error) ErrorShape {
	shape := ErrorShape{Code: CodeInternal, Message: err.Error()}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		shape.Code = CodeNotFound
	case errors.Is(err, view.ErrInvalidTransition), errors.Is(err, studio.ErrWrongView):
		shape.Code = CodeInvalidState
	case errors.Is(err, tester.ErrEmptyInput), errors.Is(err, editor.ErrDescriptionRequired):
		shape.Code = CodeInvalidParams
	case errors.Is(err, tester.ErrSendInFlight), errors.Is(err, editor.ErrSuggestionPending):
		shape.Code = CodeBusy
		shape.Retryable = true
	case errors.Is(err, tester.ErrReset):
		shape.Code = CodeDiscarded
	}
	return shape
}
