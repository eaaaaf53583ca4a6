package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"talkify/contract"
	"talkify/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Options bound the transport behavior of every connection.
type Options struct {
	PongWait   time.Duration
	WriteWait  time.Duration
	ReadLimit  int64
	SendBuffer int
}

// Server upgrades HTTP requests to authenticated websocket sessions.
// Authentication happens exactly once, before the upgrade: a request
// without a resolvable credential is rejected with 401 and no
// connection exists.
type Server struct {
	log      *slog.Logger
	auth     contract.IAuthResolver
	registry contract.IRegistry
	service  services.IChatService
	opts     Options
}

func NewServer(log *slog.Logger, auth contract.IAuthResolver, registry contract.IRegistry,
	service services.IChatService, opts Options) *Server {
	return &Server{log: log, auth: auth, registry: registry, service: service, opts: opts}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := s.auth.Resolve(r.Context(), credentialFrom(r))
	if err != nil {
		s.log.Warn("Handshake rejected", "error", err)
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Upgrade failed", "error", err)
		return
	}

	connID := uuid.NewString()
	client := NewClient(connID, identity, conn, s.service, s.log,
		s.opts.PongWait, s.opts.WriteWait, s.opts.ReadLimit, s.opts.SendBuffer)
	s.registry.Register(connID, identity, client)
	s.log.Info("Connection established", "conn", connID, "user", identity.ID)

	go client.WritePump()
	// The read pump blocks until disconnect and then closes the
	// session.
	go client.ReadPump(context.Background())
}

// credentialFrom accepts the token as a bearer header or as a query
// parameter (browser websocket clients cannot set headers).
func credentialFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
