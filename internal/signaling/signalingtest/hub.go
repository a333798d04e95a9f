// Package signalingtest - relay в памяти: пересылает конверты между Conn без сети,
// сохраняя порядок и ничего не теряя.
package signalingtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/qrave1/TeleVisit/internal/domain/events"
	"github.com/qrave1/TeleVisit/internal/signaling"
)

type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[string]*Conn
	conns []*Conn

	// DialErr возвращается из Dial, если задан
	DialErr error
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]*Conn)}
}

func (h *Hub) Dial(
	_ context.Context,
	room, peerID string,
	hello events.AnnounceEvent,
	onMessage signaling.Handler,
	onClose func(error),
) (signaling.Conn, error) {
	h.mu.Lock()
	if h.DialErr != nil {
		h.mu.Unlock()
		return nil, h.DialErr
	}

	c := &Conn{
		hub:       h,
		room:      room,
		peerID:    peerID,
		onMessage: onMessage,
		onClose:   onClose,
	}

	members := h.rooms[room]
	if members == nil {
		members = make(map[string]*Conn)
		h.rooms[room] = members
	}

	others := make([]*Conn, 0, len(members))
	for _, m := range members {
		others = append(others, m)
	}

	members[peerID] = c
	h.conns = append(h.conns, c)
	h.mu.Unlock()

	for _, m := range others {
		m.deliver(events.Envelope{Type: events.TypePeerJoined, Peer: peerID})
	}

	announce, err := events.New(events.TypeAnnounce, "", hello)
	if err != nil {
		return nil, err
	}

	if err = c.Send(announce); err != nil {
		return nil, err
	}

	return c, nil
}

// Conns - все открытые когда-либо соединения в порядке Dial
func (h *Hub) Conns() []*Conn {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*Conn, len(h.conns))
	copy(out, h.conns)

	return out
}

func (h *Hub) Conn(room, peerID string) *Conn {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.rooms[room][peerID]
}

func (h *Hub) route(from *Conn, env events.Envelope) error {
	h.mu.Lock()
	members := h.rooms[from.room]

	var targets []*Conn

	switch {
	case env.To != "":
		if to, ok := members[env.To]; ok {
			targets = append(targets, to)
		}
	default:
		for id, m := range members {
			if id != from.peerID {
				targets = append(targets, m)
			}
		}
	}
	h.mu.Unlock()

	if env.To != "" && len(targets) == 0 {
		msg := fmt.Sprintf("peer %s is not in the room", env.To)
		errEnv, _ := events.New(events.TypeError, "", events.ErrorEvent{Message: msg})
		errEnv.Message = msg
		from.deliver(errEnv)
		return nil
	}

	env.From = from.peerID

	for _, t := range targets {
		t.deliver(env)
	}

	return nil
}

func (h *Hub) leave(c *Conn) {
	h.mu.Lock()
	members := h.rooms[c.room]
	if members[c.peerID] == c {
		delete(members, c.peerID)
	}

	others := make([]*Conn, 0, len(members))
	for _, m := range members {
		others = append(others, m)
	}
	h.mu.Unlock()

	for _, m := range others {
		m.deliver(events.Envelope{Type: events.TypePeerLeft, Peer: c.peerID})
	}
}

// Conn - одно соединение. До Start входящие копятся в backlog.
type Conn struct {
	hub    *Hub
	room   string
	peerID string

	// order держит порядок доставки между Start и параллельными deliver
	order sync.Mutex

	mu        sync.Mutex
	started   bool
	closed    bool
	backlog   []events.Envelope
	sent      []events.Envelope
	onMessage signaling.Handler
	onClose   func(error)
}

func (c *Conn) Send(env events.Envelope) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return signaling.ErrClosed
	}
	c.sent = append(c.sent, env)
	c.mu.Unlock()

	return c.hub.route(c, env)
}

func (c *Conn) Start() {
	c.order.Lock()
	defer c.order.Unlock()

	c.mu.Lock()
	c.started = true
	backlog := c.backlog
	c.backlog = nil
	c.mu.Unlock()

	for _, env := range backlog {
		c.onMessage(env)
	}
}

func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.hub.leave(c)

	return nil
}

// Drop имитирует обрыв со стороны relay
func (c *Conn) Drop() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	onClose := c.onClose
	c.mu.Unlock()

	c.hub.leave(c)

	if onClose != nil {
		onClose(fmt.Errorf("%w: %v", signaling.ErrClosed, errors.New("connection reset")))
	}
}

// Inject доставляет конверт так, будто его переслал relay
func (c *Conn) Inject(env events.Envelope) {
	c.deliver(env)
}

func (c *Conn) Sent() []events.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]events.Envelope, len(c.sent))
	copy(out, c.sent)

	return out
}

// SentTypes - типы исходящих конвертов без announce
func (c *Conn) SentTypes() []events.MessageType {
	var out []events.MessageType
	for _, env := range c.Sent() {
		if env.Type != events.TypeAnnounce {
			out = append(out, env.Type)
		}
	}

	return out
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) PeerID() string {
	return c.peerID
}

func (c *Conn) deliver(env events.Envelope) {
	c.order.Lock()
	defer c.order.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	if !c.started {
		c.backlog = append(c.backlog, env)
		c.mu.Unlock()
		return
	}
	onMessage := c.onMessage
	c.mu.Unlock()

	onMessage(env)
}
