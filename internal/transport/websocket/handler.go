package websocket

import (
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yuca-profiler/yuca/internal/core/auth"
	"github.com/yuca-profiler/yuca/internal/logger"
)

type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	tokens   *auth.Service
	log      logger.Logger
}

// NewHandler accepts any origin when allowedOrigins is empty.
func NewHandler(hub *Hub, allowedOrigins []string, tokens *auth.Service, log logger.Logger) *Handler {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 {
				return true
			}

			if !slices.Contains(allowedOrigins, origin) {
				log.Warn("ws origin rejected", "origin", origin)
				return false
			}
			return true
		},
	}

	return &Handler{
		hub:      hub,
		upgrader: upgrader,
		tokens:   tokens,
		log:      log,
	}
}

// token reads the bearer header, falling back to the token query parameter
// for browsers that cannot set headers on websocket requests.
func token(r *http.Request) string {
	if t, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(t)
	}
	return r.URL.Query().Get("token")
}

func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	clientID := uuid.NewString()

	if h.tokens.Enabled() {
		claims, err := h.tokens.Verify(token(r))
		if err != nil {
			h.log.Warn("ws unauthorized", "error", err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		clientID = claims.Subject + "/" + clientID
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("ws upgrade failed", "error", err)
		return
	}

	client := NewClient(h.hub, conn, h.log, clientID)

	select {
	case h.hub.register <- client:
	case <-h.hub.ctx.Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()

	h.log.Info("ws client connected", "remote_addr", conn.RemoteAddr())
}
