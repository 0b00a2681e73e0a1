package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/colintoh/clicky-mcp/internal/config"
	"github.com/colintoh/clicky-mcp/internal/mcp"
	"github.com/colintoh/clicky-mcp/internal/session"
)

// WSHandler serves protocol sessions over WebSocket, one session per
// connection and one JSON-RPC message per text frame.
type WSHandler struct {
	cfg            *config.Config
	sessionManager *session.Manager
	server         *mcp.Server
	logger         zerolog.Logger
	upgrader       websocket.Upgrader

	mu          sync.RWMutex
	connections map[string]*wsConnection
}

type wsConnection struct {
	conn      *websocket.Conn
	session   *session.Session
	startTime time.Time

	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
}

// NewWSHandler creates a new WebSocket handler
func NewWSHandler(cfg *config.Config, sm *session.Manager, server *mcp.Server, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		cfg:            cfg,
		sessionManager: sm,
		server:         server,
		logger:         logger.With().Str("component", "websocket").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.WSReadBufferSize,
			WriteBufferSize: cfg.WSWriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // CORS settings apply to HTTP only
			},
		},
		connections: make(map[string]*wsConnection),
	}
}

// HandleConnection upgrades the request and serves the connection
func (h *WSHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionManager.CreateSession(session.TransportWebSocket)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Rejecting WebSocket connection")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	responseHeader := http.Header{}
	responseHeader.Set(SessionHeader, sess.ID)
	conn, err := h.upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket")
		sess.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	wc := &wsConnection{
		conn:      conn,
		session:   sess,
		startTime: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		logger:    h.logger.With().Str("session_id", sess.ID).Logger(),
	}

	h.mu.Lock()
	h.connections[sess.ID] = wc
	h.mu.Unlock()

	wc.logger.Info().Msg("WebSocket connected")

	go h.serve(wc)
}

// ActiveConnections returns the number of open connections
func (h *WSHandler) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// CloseAll closes every open connection
func (h *WSHandler) CloseAll() {
	h.mu.RLock()
	conns := make([]*wsConnection, 0, len(h.connections))
	for _, wc := range h.connections {
		conns = append(conns, wc)
	}
	h.mu.RUnlock()

	for _, wc := range conns {
		wc.cancel()
		wc.conn.Close()
	}
}

func (h *WSHandler) serve(wc *wsConnection) {
	var g errgroup.Group
	g.SetLimit(max(h.cfg.MaxConcurrentCalls, 1))

	defer func() {
		wc.cancel()
		g.Wait()
		wc.conn.Close()
		wc.session.Close()

		h.mu.Lock()
		delete(h.connections, wc.session.ID)
		h.mu.Unlock()

		wc.logger.Info().
			Dur("duration", time.Since(wc.startTime)).
			Msg("WebSocket closed")
	}()

	if h.cfg.WSPingInterval > 0 {
		go h.pingLoop(wc)
	}
	h.readLoop(wc, &g)
}

func (h *WSHandler) readLoop(wc *wsConnection, g *errgroup.Group) {
	wc.conn.SetReadLimit(maxMessageBytes)
	h.extendReadDeadline(wc)
	wc.conn.SetPongHandler(func(string) error {
		wc.session.Touch()
		h.extendReadDeadline(wc)
		return nil
	})

	for {
		msgType, message, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				wc.logger.Error().Err(err).Msg("WebSocket read error")
			}
			return
		}
		if msgType != websocket.TextMessage {
			wc.logger.Warn().Int("type", msgType).Msg("Ignoring non-text frame")
			continue
		}
		h.extendReadDeadline(wc)

		g.Go(func() error {
			resp := h.server.HandleMessage(wc.ctx, wc.session, message)
			if resp == nil {
				return nil
			}
			if err := h.write(wc, resp); err != nil {
				wc.logger.Error().Err(err).Msg("Failed to write response")
			}
			return nil
		})
	}
}

func (h *WSHandler) extendReadDeadline(wc *wsConnection) {
	if h.cfg.WSPongWait > 0 {
		wc.conn.SetReadDeadline(time.Now().Add(h.cfg.WSPongWait))
	}
}

// pingLoop keeps the connection alive and closes it once the session ends
func (h *WSHandler) pingLoop(wc *wsConnection) {
	ticker := time.NewTicker(h.cfg.WSPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wc.ctx.Done():
			return
		case <-ticker.C:
			if wc.session.GetState() == session.StateClosed {
				wc.logger.Info().Msg("Session ended, closing WebSocket")
				wc.conn.Close()
				return
			}
			wc.writeMu.Lock()
			err := wc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WSWriteWait))
			wc.writeMu.Unlock()
			if err != nil {
				wc.logger.Debug().Err(err).Msg("Ping failed")
				return
			}
		}
	}
}

func (h *WSHandler) write(wc *wsConnection, resp *mcp.Response) error {
	wc.writeMu.Lock()
	defer wc.writeMu.Unlock()
	if h.cfg.WSWriteWait > 0 {
		wc.conn.SetWriteDeadline(time.Now().Add(h.cfg.WSWriteWait))
	}
	return wc.conn.WriteJSON(resp)
}
