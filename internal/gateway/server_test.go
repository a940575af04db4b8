package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/agentstudio/internal/agents"
	"github.com/soyeahso/agentstudio/internal/config"
	"github.com/soyeahso/agentstudio/internal/domain"
	"github.com/soyeahso/agentstudio/internal/llm"
	"github.com/soyeahso/agentstudio/internal/logging"
	"github.com/soyeahso/agentstudio/internal/store"
	"github.com/soyeahso/agentstudio/internal/studio"
	"github.com/soyeahso/agentstudio/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token-123"

func testServer(t *testing.T, client *llm.MockClient) (*Server, *httptest.Server) {
	t.Helper()
	log := logging.New(nil, "silent")
	if client == nil {
		client = &llm.MockClient{}
	}

	ctrl, err := agents.New(store.NewAgentStore(store.NewMemoryKV(), log), nil, log)
	require.NoError(t, err)

	cfg := config.Defaults().Gateway
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = testToken

	srv := New(cfg, Deps{
		Agents:    ctrl,
		Chat:      llm.NewChatService(client, time.Second, log),
		Suggester: llm.NewSuggestionService(client, "", time.Second, log),
	}, log)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendConnect(t *testing.T, conn *websocket.Conn, params ConnectParams) Frame {
	t.Helper()
	var challenge Frame
	require.NoError(t, conn.ReadJSON(&challenge))
	assert.Equal(t, FrameTypeEvent, challenge.Type)
	assert.Equal(t, EventConnectChallenge, challenge.Event)

	req, err := NewRequest("connect-1", "connect", params)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	var resp Frame
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func validConnect() ConnectParams {
	return ConnectParams{
		MinProtocol: 1,
		MaxProtocol: 1,
		Client:      ClientInfo{ID: "test-client", Version: "1.0.0", Platform: "linux"},
		Auth:        &ConnectAuth{Token: testToken},
	}
}

// connect dials and completes the handshake.
func connect(t *testing.T, ts *httptest.Server) (*websocket.Conn, HelloOK) {
	t.Helper()
	conn := dial(t, ts)
	resp := sendConnect(t, conn, validConnect())
	require.NotNil(t, resp.OK)
	require.True(t, *resp.OK, "handshake failed: %+v", resp.Error)

	var hello HelloOK
	require.NoError(t, json.Unmarshal(resp.Payload, &hello))
	return conn, hello
}

// call sends a request and waits for its response, skipping events.
func call(t *testing.T, conn *websocket.Conn, id, method string, params any) Frame {
	t.Helper()
	req, err := NewRequest(id, method, params)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer conn.SetReadDeadline(time.Time{})
	for {
		var f Frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == FrameTypeResponse && f.ID == id {
			return f
		}
	}
}

func callOK(t *testing.T, conn *websocket.Conn, id, method string, params, out any) {
	t.Helper()
	f := call(t, conn, id, method, params)
	require.NotNil(t, f.OK)
	require.True(t, *f.OK, "%s failed: %+v", method, f.Error)
	if out != nil {
		require.NoError(t, json.Unmarshal(f.Payload, out))
	}
}

func callErr(t *testing.T, conn *websocket.Conn, id, method string, params any) *ErrorShape {
	t.Helper()
	f := call(t, conn, id, method, params)
	require.NotNil(t, f.OK)
	require.False(t, *f.OK)
	require.NotNil(t, f.Error)
	return f.Error
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := testServer(t, nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	// Public endpoint only returns status
	assert.Empty(t, health.Version)
	assert.Zero(t, health.Agents)
}

func TestNotFoundEndpoint(t *testing.T) {
	_, ts := testServer(t, nil)

	resp, err := http.Get(ts.URL + "/nonexistent")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestWebSocketHandshakeSuccess(t *testing.T) {
	srv, ts := testServer(t, nil)

	_, hello := connect(t, ts)
	assert.Equal(t, ProtocolVersion, hello.Protocol)
	assert.NotEmpty(t, hello.Server.ConnID)
	assert.NotEmpty(t, hello.Server.Session)
	assert.Equal(t, srv.Methods(), hello.Features.Methods)
	assert.Contains(t, hello.Features.Methods, "tester.send")
	assert.Contains(t, hello.Features.Events, EventAgentsChanged)
	assert.Equal(t, maxPayload, hello.Policy.MaxPayload)
}

func TestWebSocketHandshakeSessionsAreDistinct(t *testing.T) {
	_, ts := testServer(t, nil)

	_, a := connect(t, ts)
	_, b := connect(t, ts)
	assert.NotEqual(t, a.Server.Session, b.Server.Session)
	assert.NotEqual(t, a.Server.ConnID, b.Server.ConnID)
}

func TestWebSocketHandshakeRejected(t *testing.T) {
	tests := []struct {
		name   string
		params func(p *ConnectParams)
		code   string
	}{
		{"wrong_token", func(p *ConnectParams) { p.Auth = &ConnectAuth{Token: "wrong-token"} }, CodeUnauthorized},
		{"missing_auth", func(p *ConnectParams) { p.Auth = nil }, CodeUnauthorized},
		{"protocol_too_new", func(p *ConnectParams) { p.MinProtocol, p.MaxProtocol = 2, 3 }, CodeProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts := testServer(t, nil)
			conn := dial(t, ts)

			params := validConnect()
			tt.params(&params)
			resp := sendConnect(t, conn, params)

			assert.Equal(t, FrameTypeResponse, resp.Type)
			require.NotNil(t, resp.OK)
			assert.False(t, *resp.OK)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestWebSocketHandshakeWrongFirstFrame(t *testing.T) {
	_, ts := testServer(t, nil)
	conn := dial(t, ts)

	var challenge Frame
	require.NoError(t, conn.ReadJSON(&challenge))

	req, err := NewRequest("req-1", "agents.list", nil)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	var resp Frame
	require.NoError(t, conn.ReadJSON(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeProtocol, resp.Error.Code)
}

func TestRPCUnknownMethod(t *testing.T) {
	_, ts := testServer(t, nil)
	conn, _ := connect(t, ts)

	shape := callErr(t, conn, "r1", "agents.rename", nil)
	assert.Equal(t, CodeMethodNotFound, shape.Code)
}

func TestRPCHealth(t *testing.T) {
	_, ts := testServer(t, nil)
	conn, _ := connect(t, ts)

	var health HealthResponse
	callOK(t, conn, "r1", "health", nil, &health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Clients)
	assert.Equal(t, 2, health.Agents)
}

func TestRPCAgents(t *testing.T) {
	_, ts := testServer(t, nil)
	conn, _ := connect(t, ts)

	var list struct {
		Agents []domain.Agent `json:"agents"`
	}
	callOK(t, conn, "r1", "agents.list", nil, &list)
	require.Len(t, list.Agents, 2)
	assert.Equal(t, "Code Mentor", list.Agents[0].Name)

	var got struct {
		Agent domain.Agent `json:"agent"`
	}
	callOK(t, conn, "r2", "agents.get", map[string]string{"id": "1"}, &got)
	assert.Equal(t, "Code Mentor", got.Agent.Name)

	assert.Equal(t, CodeNotFound, callErr(t, conn, "r3", "agents.get", map[string]string{"id": "nope"}).Code)
	assert.Equal(t, CodeInvalidParams, callErr(t, conn, "r4", "agents.get", nil).Code)

	var del struct {
		Deleted bool           `json:"deleted"`
		Agents  []domain.Agent `json:"agents"`
	}
	callOK(t, conn, "r5", "agents.delete", map[string]any{"id": "1", "confirm": false}, &del)
	assert.False(t, del.Deleted)
	assert.Len(t, del.Agents, 2)

	callOK(t, conn, "r6", "agents.delete", map[string]any{"id": "1", "confirm": true}, &del)
	assert.True(t, del.Deleted)
	require.Len(t, del.Agents, 1)
	assert.Equal(t, "2", del.Agents[0].ID)
}

func TestRPCTesterFlow(t *testing.T) {
	client := &llm.MockClient{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "Hi from " + req.Model}, nil
		},
	}
	_, ts := testServer(t, client)
	conn, _ := connect(t, ts)

	assert.Equal(t, CodeInvalidState, callErr(t, conn, "r0", "tester.get", nil).Code)

	var state studio.State
	callOK(t, conn, "r1", "view.test", map[string]string{"id": "1"}, &state)
	assert.Equal(t, domain.ViewTester, state.View)
	require.NotNil(t, state.Tester)
	assert.Empty(t, state.Tester.Messages)

	assert.Equal(t, CodeInvalidParams, callErr(t, conn, "r2", "tester.send", map[string]string{"text": "   "}).Code)

	var sent struct {
		Reply domain.Message `json:"reply"`
	}
	callOK(t, conn, "r3", "tester.send", map[string]string{"text": "Hello"}, &sent)
	assert.Equal(t, domain.RoleModel, sent.Reply.Role)
	assert.Equal(t, "Hi from "+string(domain.ModelFlash), sent.Reply.Content)

	var ts2 tester.State
	callOK(t, conn, "r4", "tester.get", nil, &ts2)
	require.Len(t, ts2.Messages, 2)
	assert.Equal(t, "Hello", ts2.Messages[0].Content)
	assert.False(t, ts2.Loading)

	callOK(t, conn, "r5", "tester.reset", nil, &ts2)
	assert.Empty(t, ts2.Messages)

	callOK(t, conn, "r6", "view.back", nil, &state)
	assert.Equal(t, domain.ViewDashboard, state.View)
	assert.Nil(t, state.Tester)

	assert.Equal(t, CodeInvalidState, callErr(t, conn, "r7", "view.back", nil).Code)
}

func TestRPCEditorFlow(t *testing.T) {
	client := &llm.MockClient{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: `{"name":"Chef","description":"Cooks things.","systemInstruction":"You are a chef."}`}, nil
		},
	}
	_, ts := testServer(t, client)
	conn, _ := connect(t, ts)

	var state studio.State
	callOK(t, conn, "r1", "view.createNew", nil, &state)
	assert.Equal(t, domain.ViewEditor, state.View)
	require.NotNil(t, state.Editor)

	assert.Equal(t, CodeInvalidParams, callErr(t, conn, "r2", "editor.suggest", nil).Code)

	callOK(t, conn, "r3", "editor.update", map[string]string{"description": "a cooking helper"}, nil)

	var sug struct {
		Suggestion llm.Suggestion `json:"suggestion"`
		Draft      struct {
			Name string `json:"name"`
		} `json:"draft"`
	}
	callOK(t, conn, "r4", "editor.suggest", nil, &sug)
	assert.Equal(t, "Chef", sug.Draft.Name)

	var submit struct {
		Saved bool         `json:"saved"`
		State studio.State `json:"state"`
		Agent domain.Agent `json:"agent"`
	}
	callOK(t, conn, "r5", "editor.submit", nil, &submit)
	assert.True(t, submit.Saved)
	assert.Equal(t, domain.ViewDashboard, submit.State.View)
	assert.Equal(t, "Chef", submit.Agent.Name)
	assert.NotEmpty(t, submit.Agent.ID)

	var list struct {
		Agents []domain.Agent `json:"agents"`
	}
	callOK(t, conn, "r6", "agents.list", nil, &list)
	require.Len(t, list.Agents, 3)
	assert.Equal(t, submit.Agent.ID, list.Agents[0].ID)
}

func TestRPCEditorCancel(t *testing.T) {
	_, ts := testServer(t, nil)
	conn, _ := connect(t, ts)

	assert.Equal(t, CodeInvalidState, callErr(t, conn, "r0", "editor.cancel", nil).Code)

	var state studio.State
	callOK(t, conn, "r1", "view.edit", map[string]string{"id": "2"}, &state)
	require.NotNil(t, state.Editor)
	require.NotNil(t, state.Editor.Original)
	assert.Equal(t, "2", state.Editor.Original.ID)

	callOK(t, conn, "r2", "editor.cancel", nil, &state)
	assert.Equal(t, domain.ViewDashboard, state.View)
	assert.Nil(t, state.Editor)
}

func TestAgentsChangedBroadcast(t *testing.T) {
	_, ts := testServer(t, nil)
	a, _ := connect(t, ts)
	b, _ := connect(t, ts)

	callOK(t, a, "r1", "agents.delete", map[string]any{"id": "2", "confirm": true}, nil)

	b.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev Frame
	require.NoError(t, b.ReadJSON(&ev))
	assert.Equal(t, FrameTypeEvent, ev.Type)
	assert.Equal(t, EventAgentsChanged, ev.Event)
	assert.Positive(t, ev.Seq)

	var payload struct {
		Agents []domain.Agent `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	require.Len(t, payload.Agents, 1)
	assert.Equal(t, "1", payload.Agents[0].ID)
}

func TestServeShutdown(t *testing.T) {
	srv, _ := testServer(t, nil)
	srv.cfg.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Start(ctx)
	}()

	require.Eventually(t, func() bool { return srv.Addr() != "" }, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestMethodsSorted(t *testing.T) {
	srv, _ := testServer(t, nil)
	methods := srv.Methods()
	assert.IsIncreasing(t, methods)
	assert.True(t, srv.async["tester.send"])
	assert.True(t, srv.async["editor.suggest"])
	assert.False(t, srv.async["agents.list"])
}
