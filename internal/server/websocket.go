package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kode4food/caravan/topic"
	"github.com/kode4food/timebox"

	"github.com/weftlabs/weft/internal/events"
	"github.com/weftlabs/weft/pkg/api"
	pkgevents "github.com/weftlabs/weft/pkg/events"
	"github.com/weftlabs/weft/pkg/log"
)

type (
	// Client represents a WebSocket client connection streaming session
	// operations
	Client struct {
		server   *Server
		conn     *websocket.Conn
		consumer topic.Consumer[*timebox.Event]
		filter   events.EventFilter
		getState StateFunc
		minSeq   int64
		done     chan struct{}
	}

	// StateFunc retrieves the current session status and next sequence for
	// a subscription. The next sequence lets clients detect sequence skew
	StateFunc func(context.Context, api.SessionID) (any, int64, error)
)

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 512
	wsBufferSize       = 1024
	incomingBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) handleWebSocket(c *gin.Context) {
	s.serveWebSocket(c.Writer, c.Request,
		func(ctx context.Context, id api.SessionID) (any, int64, error) {
			return s.orchestrator.StatusWithSequence(ctx, id)
		},
	)
}

func (s *Server) serveWebSocket(
	w http.ResponseWriter, r *http.Request, st StateFunc,
) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed",
			log.Error(err))
		return
	}

	noopFilter := func(*timebox.Event) bool { return false }
	client := &Client{
		server:   s,
		conn:     conn,
		consumer: s.eventHub.NewConsumer(),
		filter:   noopFilter,
		getState: st,
		done:     make(chan struct{}),
	}
	s.registerWebSocket(client)

	go client.run()
}

// Close terminates the client connection and stops its stream
func (c *Client) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

func (c *Client) run() {
	defer func() {
		c.server.unregisterWebSocket(c)
		c.consumer.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	incoming := make(chan []byte, incomingBufferSize)
	go c.readMessages(incoming)

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message, ok := <-incoming:
			if !ok {
				return
			}
			c.handleSubscribe(message)

		case event, ok := <-c.consumer.Receive():
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !c.sendEventIfMatched(event) {
				return
			}

		case <-ticker.C:
			if !c.sendPing() {
				return
			}
		}
	}
}

func (c *Client) readMessages(incoming chan []byte) {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			close(incoming)
			return
		}
		incoming <- message
	}
}

func (c *Client) handleSubscribe(message []byte) {
	var sub api.SubscribeRequest
	if err := json.Unmarshal(message, &sub); err != nil {
		slog.Error("Failed to parse WebSocket message",
			log.Error(err))
		return
	}

	if sub.Type != "subscribe" {
		return
	}

	c.filter = BuildFilter(&sub.Data)

	if sub.Data.SessionID != "" {
		c.sendSubscribeState(sub.Data.SessionID)
	}
}

func (c *Client) sendSubscribeState(id api.SessionID) {
	if c.getState == nil {
		return
	}

	state, nextSeq, err := c.getState(context.Background(), id)
	if err != nil {
		slog.Error("Failed to get state for subscription",
			log.SessionID(id),
			log.Error(err))
		return
	}

	data, err := json.Marshal(state)
	if err != nil {
		slog.Error("Failed to marshal state",
			log.SessionID(id),
			log.Error(err))
		return
	}

	c.minSeq = nextSeq

	msg := api.SubscribedResult{
		Type:      "subscribed",
		SessionID: id,
		Data:      data,
		Sequence:  nextSeq,
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		slog.Error("WebSocket write failed",
			slog.String("context", "subscribed"),
			log.Error(err))
	}
}

func (c *Client) sendEventIfMatched(event *timebox.Event) bool {
	if event.Sequence < c.minSeq || !c.filter(event) {
		return true
	}

	wsEvent := c.transformEvent(event)
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(wsEvent); err != nil {
		slog.Error("WebSocket write failed",
			log.Error(err))
		return false
	}
	return true
}

func (c *Client) transformEvent(ev *timebox.Event) *api.WebSocketEvent {
	var sessionID api.SessionID
	if pkgevents.IsSessionEvent(ev) {
		sessionID = api.SessionID(ev.AggregateID[1])
	}
	return &api.WebSocketEvent{
		Type:      api.EventType(ev.Type),
		Data:      ev.Data,
		Timestamp: ev.Timestamp.UnixMilli(),
		SessionID: sessionID,
		Sequence:  ev.Sequence,
	}
}

func (c *Client) sendPing() bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteMessage(websocket.PingMessage, nil)
	return err == nil
}

// BuildFilter creates an event filter based on client subscription
// preferences for a session and operation types
func BuildFilter(sub *api.ClientSubscription) events.EventFilter {
	var sessionFilter events.EventFilter
	if sub.SessionID != "" {
		sessionFilter = events.FilterSession(sub.SessionID)
	}

	var eventTypeFilter events.EventFilter
	if len(sub.EventTypes) > 0 {
		eventTypeFilter = events.FilterEvents(sub.EventTypes...)
	}

	switch {
	case sessionFilter != nil && eventTypeFilter != nil:
		return events.AndFilters(sessionFilter, eventTypeFilter)
	case sessionFilter != nil:
		return sessionFilter
	case eventTypeFilter != nil:
		return eventTypeFilter
	default:
		return func(*timebox.Event) bool { return false }
	}
}
