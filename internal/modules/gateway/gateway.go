// Package gateway pushes queue and catalog changes to browsers over
// socket.io, with Redis fan-out so every instance behind a load balancer
// delivers the same events.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"

	pkgredis "github.com/forgespec/core/internal/pkg/redis"
)

const (
	namespaceWeb = "/web"
	redisChanWeb = "fs:gateway:web"
)

// Message is the envelope used by hub broadcasts and Redis fan-out. Origin
// identifies the publishing instance so it can skip its own echo.
type Message struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
	Origin  string      `json:"origin,omitempty"`
}

type gatewayPayload struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub owns the socket.io server and the broadcast loop.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]struct{}

	broadcast  chan Message
	register   chan string
	unregister chan string

	rc     *pkgredis.Client
	logger *zap.Logger
	sio    *socketio.Server
	id     string
}

func NewHub(rc *pkgredis.Client, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		clients:    make(map[string]struct{}),
		broadcast:  make(chan Message, 256),
		register:   make(chan string, 256),
		unregister: make(chan string, 256),
		rc:         rc,
		logger:     logger,
		sio:        socketio.NewServer(nil, nil),
		id:         uuid.NewString(),
	}
	h.registerNamespace()
	return h
}

func (h *Hub) registerNamespace() {
	ns := h.sio.Of(namespaceWeb, nil)
	_ = ns.On("connection", func(args ...any) {
		client, ok := args[0].(*socketio.Socket)
		if !ok {
			return
		}
		sid := string(client.Id())
		h.register <- sid
		_ = client.Emit("message", gatewayPayload{Type: "GATEWAY_CONNECT", Data: "WebSocket connected"})

		_ = client.On("disconnect", func(_ ...any) {
			h.unregister <- sid
		})
	})
}

// Run drives the hub until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	if h.rc != nil {
		go h.subscribeRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.sio.Close(nil)
			return

		case sid := <-h.register:
			h.mu.Lock()
			h.clients[sid] = struct{}{}
			h.mu.Unlock()

		case sid := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, sid)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.deliver(msg)

			if h.rc != nil {
				data, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				if err := h.rc.Publish(ctx, redisChanWeb, string(data)); err != nil {
					h.logger.Warn("gateway publish failed", zap.Error(err))
				}
			}
		}
	}
}

func (h *Hub) deliver(msg Message) {
	h.sio.Of(namespaceWeb, nil).Emit("message", gatewayPayload{Type: msg.Event, Data: msg.Payload})
}

// subscribeRedis replays broadcasts originated on other instances.
func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.rc.Subscribe(ctx, redisChanWeb)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return

		case redisMsg, ok := <-ch:
			if !ok {
				return
			}
			var msg Message
			if err := json.Unmarshal([]byte(redisMsg.Payload), &msg); err != nil {
				continue
			}
			if msg.Origin == h.id {
				continue
			}
			h.deliver(msg)
		}
	}
}

// Broadcast queues an event for every connected client. Satisfies the
// Notifier seam of the intake, catalog and backup services.
func (h *Hub) Broadcast(event string, payload interface{}) {
	select {
	case h.broadcast <- Message{Event: event, Payload: payload, Origin: h.id}:
	default:
		h.logger.Warn("gateway broadcast dropped", zap.String("event", event))
	}
}

// ClientCount reports connected clients on this instance.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handler returns the socket.io HTTP handler mounted at /socket.io.
func (h *Hub) Handler() http.Handler {
	return h.sio.ServeHandler(nil)
}

// RegisterRoutes mounts socket.io plus a small stats endpoint.
func RegisterRoutes(rg *gin.RouterGroup, hub *Hub, queueStats func() map[string]int) {
	handler := gin.WrapH(hub.Handler())
	rg.Any("/socket.io", handler)
	rg.Any("/socket.io/*any", handler)

	rg.GET("/gateway/stats", func(c *gin.Context) {
		stats := gin.H{"clients": hub.ClientCount()}
		if queueStats != nil {
			stats["queue"] = queueStats()
		}
		c.JSON(http.StatusOK, stats)
	})
}
