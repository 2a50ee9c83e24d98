// Package bridge carries the observer stream over websockets. Each
// connection gets a read pump for observer commands and a write pump
// draining a bounded frame buffer; a connection that cannot keep up
// with the tick stream is closed rather than allowed to stall the hub.
package bridge

import (
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"agentarena/pkg/sim"
	"agentarena/pkg/wire"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second // must stay under pongWait

	sendBuffer = 256

	// Inbound command ceiling per connection per second.
	maxCommandRate = 50
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       validOrigin,
	EnableCompression: true,
}

// validOrigin admits same-origin browsers, localhost and non-browser
// clients (no Origin header).
func validOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	host := u.Host
	return host == "localhost" || host == "127.0.0.1" ||
		strings.HasPrefix(host, "localhost:") || strings.HasPrefix(host, "127.0.0.1:")
}

// Handler upgrades observer connections and wires them to the hub.
// Connection lifecycle logging happens in the hub, which owns the
// observer set.
type Handler struct {
	hub    *sim.Hub
	errlog func(format string, v ...any)
}

func New(hub *sim.Hub, errlog func(format string, v ...any)) *Handler {
	return &Handler{hub: hub, errlog: errlog}
}

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

// trySend hands one encoded frame to the write pump without blocking.
// A full buffer kills the connection; the hub has already dropped the
// observer by the time this returns false.
func (c *client) trySend(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		c.closeOnce.Do(func() { c.conn.Close() })
		return false
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.errlog("bridge: upgrade: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	obs := h.hub.Subscribe(c.trySend, r.URL.Query().Get("agent"))

	go c.writePump()
	h.readPump(c, obs)
}

// readPump drives the connection until the peer goes away, then tears
// the observer down. Closing send after Unsubscribe is safe: once the
// observer is out of the hub no further trySend can happen.
func (h *Handler) readPump(c *client, obs *sim.Observer) {
	defer func() {
		h.hub.Unsubscribe(obs)
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wire.MaxInboundFrame)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	count := 0
	windowStart := time.Now()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.errlog("bridge: observer %s read: %v", obs.ID, err)
			}
			return
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			count = 0
			windowStart = now
		}
		count++
		if count > maxCommandRate {
			continue
		}

		var cmd wire.ObserverCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.hub.SendResult(obs, wire.CommandResult{Error: wire.ErrInvalidArgs, Hint: "malformed frame"})
			continue
		}
		h.dispatch(obs, &cmd)
	}
}

func (h *Handler) dispatch(obs *sim.Observer, cmd *wire.ObserverCommand) {
	defer func() {
		if r := recover(); r != nil {
			h.errlog("bridge: panic in %s for observer %s: %v\n%s", cmd.Type, obs.ID, r, debug.Stack())
		}
	}()

	switch cmd.Type {
	case "subscribe":
		h.hub.ResetAck(obs)
	case "viewport":
		if cmd.X == nil || cmd.Z == nil {
			h.hub.SendResult(obs, wire.CommandResult{Error: wire.ErrInvalidArgs, Hint: "viewport needs x and z"})
			return
		}
		if err := h.hub.SetViewport(obs, *cmd.X, *cmd.Z); err != nil {
			h.hub.SendResult(obs, wire.CommandResult{Error: err.Token, Hint: err.Hint})
		}
	case "follow":
		h.hub.SetFollow(obs, cmd.AgentID)
	case "requestProfiles":
		h.hub.RequestProfiles(obs)
	case "requestProfile":
		h.hub.RequestProfile(obs, cmd.AgentID)
	case "requestBattles":
		h.hub.RequestBattles(obs)
	case "requestRoomInfo":
		h.hub.RequestRoomInfo(obs)
	case "placeBet":
		betID, err := h.hub.PlaceBet(cmd.AgentID, cmd.Amount, cmd.TxHash, cmd.Wallet)
		if err != nil {
			h.hub.SendResult(obs, wire.CommandResult{Error: err.Token, Hint: err.Hint})
			return
		}
		h.hub.SendResult(obs, wire.CommandResult{OK: true, BetID: betID})
	default:
		h.hub.SendResult(obs, wire.CommandResult{Error: wire.ErrUnknownCommand, Hint: "unknown observer command " + cmd.Type})
	}
}

// writePump flushes buffered frames and keeps the connection alive with
// pings. It exits when send closes or any write fails.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
