package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/agentstudio/internal/agents"
	"github.com/soyeahso/agentstudio/internal/config"
	"github.com/soyeahso/agentstudio/internal/domain"
	"github.com/soyeahso/agentstudio/internal/editor"
	"github.com/soyeahso/agentstudio/internal/hooks"
	"github.com/soyeahso/agentstudio/internal/logging"
	"github.com/soyeahso/agentstudio/internal/studio"
	"github.com/soyeahso/agentstudio/internal/tester"
	"github.com/soyeahso/agentstudio/internal/version"
)

var ErrClientClosed = errors.New("client connection closed")

// handshakeTimeout bounds the challenge/connect exchange.
const handshakeTimeout = 10 * time.Second

// Deps are the shared services every studio session is built on.
type Deps struct {
	Agents    *agents.Controller
	Chat      tester.Chatter
	Suggester editor.Suggester
}

// Server is the agentstudio gateway HTTP + WebSocket server.
type Server struct {
	cfg      config.GatewayConfig
	creds    Credentials
	deps     Deps
	log      *logging.Logger
	clients  *ClientRegistry
	handlers map[string]RequestHandler
	async    map[string]bool
	version  string
	eventSeq atomic.Int64

	hooks *hooks.Manager // optional

	// baseCtx outlives individual connections so an async send still resolves
	// after its client disconnects.
	baseCtx context.Context
	pending sync.WaitGroup

	mu         sync.Mutex
	startedAt  time.Time
	listenAddr string
	upgrader   websocket.Upgrader
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithHooks sets the hook manager for lifecycle events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// New creates a new gateway server.
func New(cfg config.GatewayConfig, deps Deps, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:      cfg,
		creds:    ResolveCredentials(cfg.Auth),
		deps:     deps,
		log:      log.Sub("gateway"),
		clients:  NewClientRegistry(log.Sub("clients")),
		handlers: make(map[string]RequestHandler),
		async:    make(map[string]bool),
		version:  version.Version,
		baseCtx:  context.Background(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.AllowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.registerRPCHandlers()
	deps.Agents.OnChange(s.broadcastAgents)
	return s
}

// checkWebSocketOrigin admits non-browser clients (no Origin header) and
// browsers whose Origin is on the allow list.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || originAllowed(origin, allowed)
	}
}

// Handle registers an RPC method handler that runs on the connection's read loop.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// HandleAsync registers an RPC method handler that runs on its own goroutine,
// leaving the read loop free while it waits on the model.
func (s *Server) HandleAsync(method string, handler RequestHandler) {
	s.handlers[method] = handler
	s.async[method] = true
}

// Methods returns the sorted list of registered RPC method names.
func (s *Server) Methods() []string {
	return slices.Sorted(maps.Keys(s.handlers))
}

// resolveBindAddr maps the bind mode to a host:port. Unknown modes fall back
// to loopback.
func resolveBindAddr(cfg config.GatewayConfig) string {
	host := "127.0.0.1"
	switch cfg.Bind {
	case "lan":
		host = "0.0.0.0"
	case "custom":
		if cfg.CustomBindHost != "" {
			host = cfg.CustomBindHost
		}
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.Port))
}

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.AllowedOrigins)
}

// Start listens on the configured bind address and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes every
// client and waits for in-flight async requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	addr := ln.Addr().String()

	s.mu.Lock()
	s.listenAddr = addr
	s.startedAt = time.Now()
	s.baseCtx = context.WithoutCancel(ctx)
	s.mu.Unlock()

	if s.cfg.Bind != "" && s.cfg.Bind != "loopback" {
		s.log.Warn().Msg("gateway is not bound to loopback; credentials travel in cleartext")
	}
	s.log.Info().
		Str("addr", addr).
		Str("auth", s.creds.Mode).
		Int("methods", len(s.handlers)).
		Msg("gateway listening")
	s.emit(ctx, hooks.EventGatewayStart, map[string]any{"addr": addr})

	go func() {
		<-ctx.Done()
		s.shutdown(hs)
	}()

	err := hs.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	s.pending.Wait()
	return err
}

func (s *Server) shutdown(hs *http.Server) {
	s.log.Info().Msg("gateway shutting down")
	s.emit(context.Background(), hooks.EventGatewayStop, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.clients.CloseAll()
	if err := hs.Shutdown(ctx); err != nil {
		s.log.Warn().Err(err).Msg("http shutdown")
	}
}

func (s *Server) emit(ctx context.Context, event string, data map[string]any) {
	if s.hooks != nil {
		s.hooks.Emit(ctx, event, data)
	}
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listenAddr
}

// broadcastAgents pushes the collection to every client after a change.
func (s *Server) broadcastAgents(list []domain.Agent) {
	frame, err := NewEvent(EventAgentsChanged, map[string]any{"agents": list}, s.eventSeq.Add(1))
	if err != nil {
		s.log.Error().Err(err).Msg("encoding agents event")
		return
	}
	s.clients.Broadcast(frame)
}

// handleWebSocket upgrades the request, authenticates the peer and serves its
// requests until the socket closes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxPayload)
	log := s.log.With("remote", r.RemoteAddr)

	client, err := s.handshake(conn)
	if err != nil {
		log.Warn().Err(err).Msg("handshake failed")
		conn.Close()
		return
	}

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Studio.Close(s.ctx())
		client.Close()
	}()
	s.readLoop(client)
}

// handshake runs challenge, connect and hello. The studio session is only
// created once the peer has authenticated.
func (s *Server) handshake(conn *websocket.Conn) (*Client, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	challenge, err := NewEvent(EventConnectChallenge, map[string]any{
		"nonce": uuid.NewString(),
		"ts":    time.Now().UnixMilli(),
	}, 0)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(challenge); err != nil {
		return nil, fmt.Errorf("sending challenge: %w", err)
	}

	reqID, params, err := readConnect(conn)
	if err != nil {
		return nil, err
	}
	auth := s.creds.Verify(params.Auth)
	if !auth.OK {
		reject(conn, reqID, CodeUnauthorized, auth.Reason)
		return nil, fmt.Errorf("auth failed: %s", auth.Reason)
	}
	conn.SetReadDeadline(time.Time{})

	st := studio.New(studio.Deps{
		Agents:    s.deps.Agents,
		Chat:      s.deps.Chat,
		Suggester: s.deps.Suggester,
		Hooks:     s.hooks,
		Log:       s.log,
	})
	client := NewClient(conn, params.Client, auth, st)

	resp, err := NewResponse(reqID, s.hello(client.ConnID, st.ID()))
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(resp); err != nil {
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	s.log.Info().
		Str("connId", client.ConnID).
		Str("clientId", params.Client.ID).
		Str("clientVersion", params.Client.Version).
		Str("authMethod", auth.Method).
		Str("session", st.ID()).
		Msg("client authenticated")
	return client, nil
}

// readConnect reads the first client frame and checks it is a connect request
// with a compatible protocol range. Violations are reported to the peer
// before the error is returned.
func readConnect(conn *websocket.Conn) (string, ConnectParams, error) {
	var params ConnectParams

	var frame Frame
	if err := conn.ReadJSON(&frame); err != nil {
		return "", params, fmt.Errorf("reading connect: %w", err)
	}
	if frame.Type != FrameTypeRequest || frame.Method != "connect" {
		reject(conn, frame.ID, CodeProtocol, "expected connect request")
		return "", params, fmt.Errorf("expected connect request, got %s %q", frame.Type, frame.Method)
	}
	if err := json.Unmarshal(frame.Params, &params); err != nil {
		reject(conn, frame.ID, CodeInvalidParams, "invalid connect params")
		return "", params, fmt.Errorf("parsing connect params: %w", err)
	}
	if params.MinProtocol > ProtocolVersion || (params.MaxProtocol > 0 && params.MaxProtocol < ProtocolVersion) {
		reject(conn, frame.ID, CodeProtocol, fmt.Sprintf("server speaks protocol %d", ProtocolVersion))
		return "", params, fmt.Errorf("protocol mismatch: client %d-%d", params.MinProtocol, params.MaxProtocol)
	}
	return frame.ID, params, nil
}

func (s *Server) hello(connID, session string) HelloOK {
	return HelloOK{
		Protocol: ProtocolVersion,
		Server: ServerInfo{
			Version: s.version,
			Commit:  version.Commit,
			ConnID:  connID,
			Session: session,
		},
		Features: Features{
			Methods: s.Methods(),
			Events:  []string{EventConnectChallenge, EventAgentsChanged},
		},
		Policy: ServerPolicy{MaxPayload: maxPayload},
	}
}

// readLoop serves requests from an authenticated client until it disconnects.
func (s *Server) readLoop(client *Client) {
	log := s.log.With("connId", client.ConnID)
	for {
		frame, err := client.ReadFrame()
		switch {
		case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
			log.Debug().Msg("client closed connection")
			return
		case err != nil:
			log.Warn().Err(err).Msg("read error")
			return
		case frame.Type != FrameTypeRequest:
			log.Debug().Str("type", frame.Type).Msg("ignoring non-request frame")
		default:
			s.dispatch(client, frame)
		}
	}
}

func (s *Server) dispatch(client *Client, frame Frame) {
	handler, ok := s.handlers[frame.Method]
	if !ok {
		client.RespondError(frame.ID, ErrorShape{
			Code:    CodeMethodNotFound,
			Message: "unknown method: " + frame.Method,
		})
		return
	}

	rc := &RequestContext{Ctx: s.ctx(), Client: client, Frame: frame, Server: s}
	if !s.async[frame.Method] {
		handler(rc)
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		handler(rc)
	}()
}

func (s *Server) ctx() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

// reject answers the connect request with an error and closes the socket.
func reject(conn *websocket.Conn, reqID, code, message string) {
	conn.WriteJSON(NewErrorResponse(reqID, ErrorShape{Code: code, Message: message}))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, message))
}
