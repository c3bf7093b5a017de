package realtime

import (
	"encoding/json"
	"time"

	"proctor_backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Client struct {
	ID       string
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	Identity Identity
	Channels []Channel
	Limiter  *rate.Limiter
}

func newClient(h *Hub, conn *websocket.Conn, id Identity, channels []Channel) *Client {
	return &Client{
		ID:       uuid.NewString(),
		Hub:      h,
		Conn:     conn,
		Send:     make(chan []byte, h.cfg.SendBuffer),
		Identity: id,
		Channels: channels,
		Limiter:  rate.NewLimiter(rate.Limit(5), 10),
	}
}

func (c *Client) pingPeriod() time.Duration {
	return (c.Hub.cfg.PongWait * 9) / 10
}

// readPump 上行只接受心跳，状态变更一律走 HTTP 接口
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Hub.cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Hub.cfg.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("WebSocket unexpected close", zap.Error(err), zap.String("connId", c.ID))
			}
			break
		}

		if !c.Limiter.Allow() {
			continue
		}

		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			pong, _ := json.Marshal(Message{Type: "pong"})
			c.Hub.sendTo(c, pong)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod())
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	writeWait := c.Hub.cfg.WriteWait
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// 每条消息独立成帧，客户端逐条解析 JSON
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
