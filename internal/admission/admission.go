// Package admission - комната ожидания: пациент просит допуск, врач одобряет или отклоняет.
package admission

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/qrave1/TeleVisit/internal/application/constant"
	"github.com/qrave1/TeleVisit/internal/domain"
	"github.com/qrave1/TeleVisit/internal/domain/events"
)

var (
	ErrWrongRole      = errors.New("action not allowed for role")
	ErrUnknownRequest = errors.New("no pending join request from peer")
	ErrBadState       = errors.New("admission state does not allow this")
)

type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateWaiting    State = "waiting"
	StateGranted    State = "granted"
	StateRejected   State = "rejected"
)

// Controller не потокобезопасен, вызывается из цикла сессии
type Controller struct {
	role   domain.Role
	signal events.Sender
	now    func() time.Time

	state   State
	granter string
	reason  string

	// запросы в порядке первого поступления, повтор заменяет запись на месте
	requests []domain.JoinRequest
	admitted map[string]struct{}
}

func NewController(role domain.Role, signal events.Sender) *Controller {
	return &Controller{
		role:     role,
		signal:   signal,
		now:      time.Now,
		state:    StateIdle,
		admitted: make(map[string]struct{}),
	}
}

func (c *Controller) Role() domain.Role {
	return c.role
}

func (c *Controller) State() State {
	return c.state
}

// Granter - peer id врача, выдавшего допуск. Ему пациент отправляет offer.
func (c *Controller) Granter() string {
	return c.granter
}

// Reason - сообщение врача при отказе
func (c *Controller) Reason() string {
	return c.reason
}

// RequestJoin отправляет join_request. При ошибке отправки состояние возвращается в idle.
func (c *Controller) RequestJoin(name, intake string) error {
	if c.role != domain.RolePatient {
		return fmt.Errorf("%w: %s cannot request join", ErrWrongRole, c.role)
	}

	if c.state != StateIdle {
		return fmt.Errorf("%w: request join from %s", ErrBadState, c.state)
	}

	env, err := events.New(events.TypeJoinRequest, "", events.JoinRequestEvent{Name: name, Intake: intake})
	if err != nil {
		return err
	}

	c.state = StateRequesting

	if err = c.signal.Send(env); err != nil {
		c.state = StateIdle
		return fmt.Errorf("send join request: %w", err)
	}

	c.state = StateWaiting

	return nil
}

// HandleGranted - допуск получен, после этого пациенту разрешено начинать согласование
func (c *Controller) HandleGranted(from string) error {
	if c.role != domain.RolePatient {
		return fmt.Errorf("%w: %s got a grant", ErrWrongRole, c.role)
	}

	if c.state != StateWaiting {
		return fmt.Errorf("%w: grant in %s", ErrBadState, c.state)
	}

	c.state = StateGranted
	c.granter = from

	return nil
}

func (c *Controller) HandleRejected(from, message string) error {
	if c.role != domain.RolePatient {
		return fmt.Errorf("%w: %s got a rejection", ErrWrongRole, c.role)
	}

	if c.state != StateWaiting && c.state != StateRequesting {
		return fmt.Errorf("%w: rejection in %s", ErrBadState, c.state)
	}

	c.state = StateRejected
	c.reason = message

	slog.Info("join request rejected", slog.String(constant.PeerID, from), slog.String(constant.Reason, message))

	return nil
}

// Granted - пациенту можно отправлять offer
func (c *Controller) Granted() bool {
	return c.role == domain.RolePatient && c.state == StateGranted
}

// HandleJoinRequest добавляет запрос в список врача или заменяет запрос того же пира
func (c *Controller) HandleJoinRequest(from string, ev events.JoinRequestEvent) error {
	if c.role != domain.RoleClinician {
		return fmt.Errorf("%w: %s got a join request", ErrWrongRole, c.role)
	}

	if from == "" {
		return errors.New("join request without sender")
	}

	req := domain.JoinRequest{
		PeerID:     from,
		Name:       ev.Name,
		Intake:     ev.Intake,
		ReceivedAt: c.now(),
	}

	// повторный запрос после допуска - пир переподключился, допуск заново
	delete(c.admitted, from)

	for i := range c.requests {
		if c.requests[i].PeerID == from {
			c.requests[i] = req
			return nil
		}
	}

	c.requests = append(c.requests, req)

	return nil
}

func (c *Controller) Requests() []domain.JoinRequest {
	out := make([]domain.JoinRequest, len(c.requests))
	copy(out, c.requests)

	return out
}

// Approve отправляет connection_granted адресно. Запрос удаляется только после успешной отправки.
func (c *Controller) Approve(peerID string) error {
	if err := c.decide(peerID, events.TypeConnectionGranted, ""); err != nil {
		return err
	}

	c.admitted[peerID] = struct{}{}
	c.state = StateGranted

	return nil
}

func (c *Controller) Reject(peerID, message string) error {
	return c.decide(peerID, events.TypeConnectionRejected, message)
}

// Admitted - врач уже отправил допуск этому пиру
func (c *Controller) Admitted(peerID string) bool {
	_, ok := c.admitted[peerID]
	return ok
}

// Remove убирает пира, например после peer-left. Возвращает true, если был ожидающий запрос.
func (c *Controller) Remove(peerID string) bool {
	delete(c.admitted, peerID)

	idx := c.indexOf(peerID)
	if idx < 0 {
		return false
	}

	c.requests = append(c.requests[:idx], c.requests[idx+1:]...)

	return true
}

// Reset сбрасывает всё состояние звонка
func (c *Controller) Reset() {
	c.state = StateIdle
	c.granter = ""
	c.reason = ""
	c.requests = nil
	c.admitted = make(map[string]struct{})
}

func (c *Controller) decide(peerID string, t events.MessageType, message string) error {
	if c.role != domain.RoleClinician {
		return fmt.Errorf("%w: %s cannot decide", ErrWrongRole, c.role)
	}

	idx := c.indexOf(peerID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, peerID)
	}

	env, err := events.New(t, peerID, events.DecisionEvent{Message: message})
	if err != nil {
		return err
	}

	if err = c.signal.Send(env); err != nil {
		return fmt.Errorf("send %s: %w", t, err)
	}

	c.requests = append(c.requests[:idx], c.requests[idx+1:]...)

	slog.Info("join request decided", slog.String(constant.PeerID, peerID), slog.String(constant.Type, string(t)))

	return nil
}

func (c *Controller) indexOf(peerID string) int {
	for i := range c.requests {
		if c.requests[i].PeerID == peerID {
			return i
		}
	}

	return -1
}
