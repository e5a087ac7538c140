package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 50
	controlTimeout    = 5 * time.Second
)

// JoinMsg is the optional payload of a join message. Missing fields fall
// back to the query parameters the connection was opened with.
type JoinMsg struct {
	Room  *RoomID `json:"room,omitempty"`
	Watch *bool   `json:"watch,omitempty"`
}

type outbound struct {
	binary bool
	data   []byte
}

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	coord      *Coordinator
	conn       *websocket.Conn
	logger     *slog.Logger
	send       chan outbound
	done       chan struct{}
	closeOnce  sync.Once
	enc        Encoding
	id         PlayerID
	remoteAddr string

	// read-pump state
	room       RoomID
	watch      bool // requested mode; replaced by the effective mode on join
	joined     bool
	msgCount   int
	msgResetAt time.Time
}

// NewClient creates a new Client
func NewClient(hub *Hub, coord *Coordinator, conn *websocket.Conn, logger *slog.Logger, id PlayerID, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		coord:      coord,
		conn:       conn,
		logger:     logger.With("player", id, "remote", remoteAddr),
		send:       make(chan outbound, sendBufSize),
		done:       make(chan struct{}),
		id:         id,
		remoteAddr: remoteAddr,
	}
}

// Deliver queues f, in the client's encoding, for the write pump. A full
// queue drops the frame so a slow client never stalls the tick.
func (c *Client) Deliver(f *Frame) {
	data, err := f.Bytes(c.enc)
	if err != nil {
		c.logger.Warn("marshal error", "type", f.Env.Type, "error", err)
		return
	}
	c.enqueue(outbound{binary: c.enc.Binary(), data: data})
}

func (c *Client) enqueue(msg outbound) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		c.logger.Debug("client too slow, dropping frame")
	}
}

func (c *Client) sendJSON(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	c.enqueue(outbound{data: data})
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// ReadPump reads messages from the WebSocket connection. It owns the
// connection's teardown and releases the player's room slot exactly once.
func (c *Client) ReadPump() {
	defer func() {
		c.leave()
		c.hub.Unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info("ws error", "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			c.logger.Warn("rate limit exceeded, disconnecting")
			return
		}

		if !c.handleMessage(message) {
			return
		}
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	ping, _ := json.Marshal(Envelope{Type: MsgPing})

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			kind := websocket.TextMessage
			if msg.binary {
				kind = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(kind, msg.data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope).
// It returns false when the connection should be closed.
func (c *Client) handleMessage(raw []byte) bool {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Warn("unmarshal error", "error", err)
		return true
	}

	switch env.Type {
	case MsgJoin:
		return c.handleJoin(env.Data)
	case MsgKeyState:
		c.handleKeyState(env.Data)
	case MsgPong:
		// deadline already refreshed
	case MsgFinish:
		c.handleFinish()
	default:
		c.logger.Warn("unknown message type", "type", env.Type)
	}
	return true
}

func (c *Client) handleJoin(data json.RawMessage) bool {
	if c.joined {
		c.logger.Warn("duplicate join ignored")
		return true
	}
	if len(data) > 0 {
		var msg JoinMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("bad join payload", "error", err)
			return true
		}
		if msg.Room != nil {
			c.room = *msg.Room
		}
		if msg.Watch != nil {
			c.watch = *msg.Watch
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()
	res, err := c.coord.Join(ctx, c.id, c.room, c, c.watch)
	if err != nil {
		c.logger.Error("join failed", "room", c.room, "error", err)
		return false
	}
	if !res.Accepted {
		c.logger.Info("join rejected, unknown room", "room", c.room)
		c.sendJSON(Envelope{Type: MsgError, Data: ErrorMsg{Msg: "room not found"}})
		return false
	}
	c.joined = true
	c.watch = res.Watching
	c.logger.Info("joined room", "room", c.room, "watch", res.Watching, "number", res.Number, "ship", res.HasShip)
	return true
}

func (c *Client) handleKeyState(data json.RawMessage) {
	if !c.joined {
		return
	}
	var keys KeyState
	if err := json.Unmarshal(data, &keys); err != nil {
		c.logger.Warn("bad keystate payload", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()
	if _, err := c.coord.KeyUpdate(ctx, c.id, keys); err != nil {
		c.logger.Warn("key update failed", "error", err)
	}
}

func (c *Client) handleFinish() {
	if !c.joined {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()
	if _, err := c.coord.DeleteRoom(ctx, c.room); err != nil {
		c.logger.Warn("delete room failed", "room", c.room, "error", err)
	}
}

// leave releases the room slot held by this connection, if any.
func (c *Client) leave() {
	if !c.joined {
		return
	}
	c.joined = false
	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()
	if err := c.coord.Disconnect(ctx, c.id, c.room, c.watch); err != nil {
		c.logger.Warn("disconnect failed", "room", c.room, "error", err)
	}
}
