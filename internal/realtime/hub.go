package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"proctor_backend/internal/config"
	"proctor_backend/pkg/logger"
	"proctor_backend/pkg/monitoring"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// envelope 广播载荷：目标频道 + 已序列化的下行消息，避免二次序列化
type envelope struct {
	Kind     EventKind       `json:"kind"`
	Channels []Channel       `json:"channels"`
	Payload  json.RawMessage `json:"payload"`
}

// Hub 实时推送服务：握手时按角色分配频道，按事件类型路由到受众。
// 生命周期：NewHub -> Run -> Stop
type Hub struct {
	cfg      config.RealtimeConfig
	router   *Router
	admins   EventAdminLookup
	broker   Broker
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	channels map[Channel]map[*Client]struct{}
	clients  map[*Client]struct{}
	stopped  bool
}

func NewHub(cfg config.RealtimeConfig, allowedOrigins []string, broker Broker, admins EventAdminLookup, participants ParticipantDirectory) *Hub {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &Hub{
		cfg:    cfg,
		router: NewRouter(participants),
		admins: admins,
		broker: broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(origins) == 0 || origins[origin]
			},
		},
		channels: make(map[Channel]map[*Client]struct{}),
		clients:  make(map[*Client]struct{}),
	}
}

// Run 接收跨实例广播，阻塞直到 ctx 结束
func (h *Hub) Run(ctx context.Context) error {
	if h.broker == nil {
		<-ctx.Done()
		return nil
	}
	return h.broker.Listen(ctx, h.deliverEnvelope)
}

// Publish 解析受众并分发。失败只记录日志，调用方不得据此回滚状态
func (h *Hub) Publish(ctx context.Context, ev Event) error {
	channels, err := h.router.Resolve(ctx, ev)
	if err != nil {
		monitoring.FanoutMessages.WithLabelValues(string(ev.Kind), "failed").Inc()
		logger.Log.Error("Fan-out audience resolution failed", zap.String("event", string(ev.Kind)), zap.Uint("eventId", ev.EventID), zap.Error(err))
		return err
	}

	payload, err := json.Marshal(Message{Type: ev.Kind, Data: ev.Data})
	if err != nil {
		return err
	}

	if h.broker == nil {
		h.deliver(ev.Kind, channels, payload)
		monitoring.FanoutMessages.WithLabelValues(string(ev.Kind), "published").Inc()
		return nil
	}

	env, err := json.Marshal(envelope{Kind: ev.Kind, Channels: channels, Payload: payload})
	if err != nil {
		return err
	}
	if err := h.broker.Publish(ctx, env); err != nil {
		monitoring.FanoutMessages.WithLabelValues(string(ev.Kind), "failed").Inc()
		logger.Log.Error("Fan-out publish failed", zap.String("event", string(ev.Kind)), zap.Error(err))
		return err
	}
	monitoring.FanoutMessages.WithLabelValues(string(ev.Kind), "published").Inc()
	return nil
}

func (h *Hub) deliverEnvelope(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Log.Error("Fan-out envelope unmarshal error", zap.Error(err))
		return
	}
	h.deliver(env.Kind, env.Channels, env.Payload)
}

// deliver 投递到本实例内订阅了任一目标频道的连接，同一连接只投递一次
func (h *Hub) deliver(kind EventKind, channels []Channel, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Client]struct{})
	for _, ch := range channels {
		for client := range h.channels[ch] {
			if _, dup := seen[client]; dup {
				continue
			}
			seen[client] = struct{}{}
			select {
			case client.Send <- payload:
				monitoring.FanoutMessages.WithLabelValues(string(kind), "delivered").Inc()
			default:
				// 发送缓冲已满的慢连接直接丢弃，客户端可重新拉取状态
				monitoring.FanoutMessages.WithLabelValues(string(kind), "dropped").Inc()
			}
		}
	}
}

// sendTo 单独回复某个连接，连接已注销时忽略
func (h *Hub) sendTo(client *Client, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.Send <- payload:
	default:
	}
}

func (h *Hub) register(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return false
	}
	h.clients[client] = struct{}{}
	for _, ch := range client.Channels {
		members, ok := h.channels[ch]
		if !ok {
			members = make(map[*Client]struct{})
			h.channels[ch] = members
		}
		members[client] = struct{}{}
	}
	monitoring.RealtimeConnections.Inc()
	return true
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for _, ch := range client.Channels {
		if members, ok := h.channels[ch]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.channels, ch)
			}
		}
	}
	close(client.Send)
	monitoring.RealtimeConnections.Dec()
}

// Subscribers 返回频道在本实例上的连接数
func (h *Hub) Subscribers(ch Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[ch])
}

// Stop 关闭全部连接，之后不再接受新连接
func (h *Hub) Stop() {
	logger.Log.Info("Realtime hub stopping: closing connections...")

	h.mu.Lock()
	h.stopped = true
	closed := len(h.clients)
	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]struct{})
	h.channels = make(map[Channel]map[*Client]struct{})
	h.mu.Unlock()

	monitoring.RealtimeConnections.Set(0)
	logger.Log.Info("Realtime hub stopped", zap.Int("closedConnections", closed))
}

// ServeWS 完成握手：先计算频道成员，再升级连接
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, id Identity) error {
	channels, err := Membership(r.Context(), id, h.admins)
	if err != nil {
		return err
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.Uint("userId", id.UserID))
		return nil
	}

	client := newClient(h, conn, id, channels)
	if !h.register(client) {
		conn.Close()
		return nil
	}

	logger.Log.Debug("Realtime client connected",
		zap.String("connId", client.ID),
		zap.Uint("userId", id.UserID),
		zap.String("role", string(id.Role)),
		zap.Int("channels", len(channels)),
	)

	go client.writePump()
	go client.readPump()
	return nil
}
