package gateway

import (
	"net/http"
	"time"

	"github.com/soyeahso/agentstudio/internal/domain"
	"github.com/soyeahso/agentstudio/internal/editor"
)

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up all JSON-RPC method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)

	s.Handle("agents.list", s.rpcAgentsList)
	s.Handle("agents.get", s.rpcAgentsGet)
	s.Handle("agents.delete", s.rpcAgentsDelete)

	s.Handle("view.get", s.rpcViewGet)
	s.Handle("view.createNew", s.rpcViewCreateNew)
	s.Handle("view.edit", s.rpcViewEdit)
	s.Handle("view.test", s.rpcViewTest)
	s.Handle("view.back", s.rpcViewBack)
	s.Handle("view.dashboard", s.rpcViewDashboard)

	s.Handle("editor.get", s.rpcEditorGet)
	s.Handle("editor.update", s.rpcEditorUpdate)
	s.HandleAsync("editor.suggest", s.rpcEditorSuggest)
	s.Handle("editor.submit", s.rpcEditorSubmit)
	s.Handle("editor.cancel", s.rpcEditorCancel)

	s.Handle("tester.get", s.rpcTesterGet)
	s.HandleAsync("tester.send", s.rpcTesterSend)
	s.Handle("tester.reset", s.rpcTesterReset)
}

func (s *Server) rpcHealth(rc *RequestContext) {
	s.mu.Lock()
	started := s.startedAt
	s.mu.Unlock()

	var uptime int64
	if !started.IsZero() {
		uptime = time.Since(started).Milliseconds()
	}
	rc.Respond(HealthResponse{
		Status:  "ok",
		Version: s.version,
		Clients: s.clients.Count(),
		Agents:  len(s.deps.Agents.List()),
		Uptime:  uptime,
	})
}

// --- agents ---

type idParams struct {
	ID string `json:"id"`
}

func (rc *RequestContext) idParam() (string, bool) {
	var p idParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return "", false
	}
	if p.ID == "" {
		rc.RespondError(CodeInvalidParams, "id is required")
		return "", false
	}
	return p.ID, true
}

func (s *Server) rpcAgentsList(rc *RequestContext) {
	rc.Respond(map[string]any{"agents": s.deps.Agents.List()})
}

func (s *Server) rpcAgentsGet(rc *RequestContext) {
	id, ok := rc.idParam()
	if !ok {
		return
	}
	agent, err := s.deps.Agents.Get(id)
	if err != nil {
		rc.RespondErr(err)
		return
	}
	rc.Respond(map[string]any{"agent": agent})
}

type deleteParams struct {
	ID      string `json:"id"`
	Confirm bool   `json:"confirm"`
}

// rpcAgentsDelete deletes only when the request carries confirm: true; the UI
// asks the user before sending it.
func (s *Server) rpcAgentsDelete(rc *RequestContext) {
	var p deleteParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.ID == "" {
		rc.RespondError(CodeInvalidParams, "id is required")
		return
	}

	deleted, err := s.deps.Agents.Delete(rc.Ctx, p.ID, func(domain.Agent) bool { return p.Confirm })
	if err != nil {
		rc.RespondErr(err)
		return
	}
	rc.Respond(map[string]any{"deleted": deleted, "agents": s.deps.Agents.List()})
}

// --- view ---

func (s *Server) rpcViewGet(rc *RequestContext) {
	rc.Respond(rc.Studio().State())
}

func (s *Server) rpcViewCreateNew(rc *RequestContext) {
	rc.Studio().CreateNew(rc.Ctx)
	rc.Respond(rc.Studio().State())
}

func (s *Server) rpcViewEdit(rc *RequestContext) {
	id, ok := rc.idParam()
	if !ok {
		return
	}
	if err := rc.Studio().Edit(rc.Ctx, id); err != nil {
		rc.RespondErr(err)
		return
	}
	rc.Respond(rc.Studio().State())
}

func (s *Server) rpcViewTest(rc *RequestContext) {
	id, ok := rc.idParam()
	if !ok {
		return
	}
	if err := rc.Studio().Test(rc.Ctx, id); err != nil {
		rc.RespondErr(err)
		return
	}
	rc.Respond(rc.Studio().State())
}

func (s *Server) rpcViewBack(rc *RequestContext) {
	if err := rc.Studio().Back(rc.Ctx); err != nil {
		rc.RespondErr(err)
		return
	}
	rc.Respond(rc.Studio().State())
}

func (s *Server) rpcViewDashboard(rc *RequestContext) {
	rc.Studio().Dashboard(rc.Ctx)
	rc.Respond(rc.Studio().State())
}

// --- editor ---

func (s *Server) rpcEditorGet(rc *RequestContext) {
	st := rc.Studio().State()
	if st.Editor == nil {
		rc.RespondError(CodeInvalidState, "no editor is open")
		return
	}
	rc.Respond(st.Editor)
}

func (s *Server) rpcEditorUpdate(rc *RequestContext) {
	var p editor.Patch
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	draft, err := rc.Studio().UpdateDraft(p)
	if err != nil {
		rc.RespondErr(err)
		return
	}
	rc.Respond(map[string]any{"draft": draft})
}

func (s *Server) rpcEditorSuggest(rc *RequestContext) {
	sug, err := rc.Studio().Suggest(rc.Ctx)
	if err != nil {
		rc.RespondErr(err)
		return
	}
	resp := map[string]any{"suggestion": sug}
	if st := rc.Studio().State(); st.Editor != nil {
		resp["draft"] = st.Editor.Draft
	}
	rc.Respond(resp)
}

func (s *Server) rpcEditorSubmit(rc *RequestContext) {
	saved, agent, err := rc.Studio().Submit(rc.Ctx)
	if err != nil {
		rc.RespondErr(err)
		return
	}
	resp := map[string]any{"saved": saved, "state": rc.Studio().State()}
	if saved {
		resp["agent"] = agent
	}
	rc.Respond(resp)
}

func (s *Server) rpcEditorCancel(rc *RequestContext) {
	if err := rc.Studio().Cancel(); err != nil {
		rc.RespondErr(err)
		return
	}
	rc.Respond(rc.Studio().State())
}

// --- tester ---

func (s *Server) rpcTesterGet(rc *RequestContext) {
	st := rc.Studio().State()
	if st.Tester == nil {
		rc.RespondError(CodeInvalidState, "no chat is open")
		return
	}
	rc.Respond(st.Tester)
}

type sendParams struct {
	Text string `json:"text"`
}

func (s *Server) rpcTesterSend(rc *RequestContext) {
	var p sendParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	reply, err := rc.Studio().Send(rc.Ctx, p.Text)
	if err != nil {
		rc.RespondErr(err)
		return
	}
	rc.Respond(map[string]any{"reply": reply})
}

func (s *Server) rpcTesterReset(rc *RequestContext) {
	if err := rc.Studio().ResetChat(); err != nil {
		rc.RespondErr(err)
		return
	}
	rc.Respond(rc.Studio().State().Tester)
}
