package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/openclaw-gurusharan/ondc-seller/internal/auth"
	"github.com/openclaw-gurusharan/ondc-seller/internal/events"
	"github.com/openclaw-gurusharan/ondc-seller/internal/notify"
	"go.uber.org/zap"
)

const (
	wsSendBuffer = 64
	wsWriteWait  = 10 * time.Second
)

// wsConn is the part of *websocket.Conn the writer uses.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// wsClient owns one connection. Only its writer goroutine writes to the socket.
type wsClient struct {
	conn wsConn
	send chan []byte
}

func (cl *wsClient) writeLoop(wallet string, log *zap.Logger) {
	for data := range cl.send {
		if err := cl.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
			log.Debug("ws set deadline failed", zap.String("wallet", wallet), zap.Error(err))
		}
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug("ws write failed", zap.String("wallet", wallet), zap.Error(err))
			_ = cl.conn.Close()
			// Drain so senders never block on a dead client until it is unregistered.
			for range cl.send {
			}
			return
		}
	}
}

// WSHub forwards escrow events to the websocket connections of the wallets involved.
type WSHub struct {
	jwtSecret   string
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[string][]*wsClient
}

func NewWSHub(jwtSecret string, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		jwtSecret:   jwtSecret,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[string][]*wsClient),
	}
}

func (h *WSHub) Start(ctx context.Context) error {
	return h.subscriber.Subscribe(ctx, events.EscrowChannel, h.dispatch)
}

func (h *WSHub) dispatch(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Warn("failed to encode ws event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	for _, wallet := range notify.Parties(event) {
		h.SendToWallet(wallet, data)
	}
}

// SendToWallet queues data for every connection of wallet. It never blocks: a client whose
// buffer is full misses the message.
func (h *WSHub) SendToWallet(wallet string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, cl := range h.connections[wallet] {
		select {
		case cl.send <- data:
		default:
			h.log.Warn("ws client too slow, dropping event", zap.String("wallet", wallet))
		}
	}
}

func (h *WSHub) register(wallet string, conn wsConn) *wsClient {
	cl := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	h.mu.Lock()
	h.connections[wallet] = append(h.connections[wallet], cl)
	h.mu.Unlock()
	go cl.writeLoop(wallet, h.log)
	return cl
}

// unregister removes cl and stops its writer. Senders hold the read lock, so none can be
// sending on cl.send once it is closed here.
func (h *WSHub) unregister(wallet string, cl *wsClient) {
	h.mu.Lock()
	conns := h.connections[wallet]
	for i, c := range conns {
		if c == cl {
			h.connections[wallet] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.connections[wallet]) == 0 {
		delete(h.connections, wallet)
	}
	h.mu.Unlock()
	close(cl.send)
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.jwtSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	wallet := claims.WalletAddress
	cl := h.register(wallet, conn)
	defer func() {
		h.unregister(wallet, cl)
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
