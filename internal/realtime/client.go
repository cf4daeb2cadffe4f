package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-webinar/studio/pkg/response"
)

const (
	writeWait      = 10 * time.Second
	maxInboundSize = 64 << 10
	sendBuffer     = 256
	watchTimeout   = 5 * time.Second
)

// The API sits behind the same CORS policy as the REST routes, and the socket
// is authenticated by token, so origin is not checked here.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WSMessage is one frame in either direction.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TokenValidator resolves a session token to its user.
type TokenValidator func(ctx context.Context, token string) (uuid.UUID, error)

// WatchAuthorizer reports whether userID may follow webinarID's events.
type WatchAuthorizer func(ctx context.Context, userID, webinarID uuid.UUID) bool

// Client is one websocket connection and the topics it follows.
type Client struct {
	ID     string
	UserID uuid.UUID

	hub    *Hub
	conn   *websocket.Conn
	send   chan WSMessage
	logger *zap.Logger

	mu     sync.Mutex
	topics []string
}

func (c *Client) addTopic(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.topics {
		if t == topic {
			return
		}
	}
	c.topics = append(c.topics, topic)
}

func (c *Client) joined() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.topics...)
}

// ServeWs upgrades GET /ws?token=...[&webinar_id=...]. The client always
// follows its own user topic and may add webinars it owns, at connect time or
// later with a {"event":"watch","data":{"webinar_id":...}} frame.
func ServeWs(hub *Hub, logger *zap.Logger, validate TokenValidator, canWatch WatchAuthorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		token := c.Query("token")
		if token == "" {
			response.BadRequest(c, "token required")
			return
		}
		userID, err := validate(ctx, token)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}

		var initial uuid.UUID
		if raw := c.Query("webinar_id"); raw != "" {
			initial, err = uuid.Parse(raw)
			if err != nil {
				response.BadRequest(c, "invalid webinar_id")
				return
			}
			if !canWatch(ctx, userID, initial) {
				response.NotFound(c, "webinar not found")
				return
			}
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade", zap.Stringer("user_id", userID), zap.Error(err))
			return
		}
		cl := &Client{
			ID:     uuid.NewString(),
			UserID: userID,
			hub:    hub,
			conn:   conn,
			send:   make(chan WSMessage, sendBuffer),
			logger: logger,
		}
		hub.Join(cl, UserTopic(userID))
		if initial != uuid.Nil {
			hub.Join(cl, WebinarTopic(initial))
		}
		go cl.writeLoop()
		cl.readLoop(canWatch)
	}
}

func (c *Client) extendRead() {
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
}

func (c *Client) readLoop(canWatch WatchAuthorizer) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxInboundSize)
	c.extendRead()
	c.conn.SetPongHandler(func(string) error {
		c.extendRead()
		return nil
	})

	for {
		var in WSMessage
		if err := c.conn.ReadJSON(&in); err != nil {
			return
		}
		c.extendRead()
		if in.Event == "watch" {
			c.watch(in.Data, canWatch)
		}
	}
}

// watch joins the requested webinar topic when the caller may see it.
// Requests for anything else are dropped silently.
func (c *Client) watch(data json.RawMessage, canWatch WatchAuthorizer) {
	var req struct {
		WebinarID uuid.UUID `json:"webinar_id"`
	}
	if json.Unmarshal(data, &req) != nil || req.WebinarID == uuid.Nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), watchTimeout)
	defer cancel()
	if canWatch(ctx, c.UserID, req.WebinarID) {
		c.hub.Join(c, WebinarTopic(req.WebinarID))
	}
}

func (c *Client) write(kind int, payload []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(kind, payload)
}

func (c *Client) writeLoop() {
	ping := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case out, open := <-c.send:
			if !open {
				_ = c.write(websocket.CloseMessage, nil)
				return
			}
			frame, err := json.Marshal(out)
			if err != nil {
				c.logger.Warn("encode ws frame", zap.String("event", out.Event), zap.Error(err))
				continue
			}
			if c.write(websocket.TextMessage, frame) != nil {
				return
			}
		case <-ping.C:
			if c.write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}
