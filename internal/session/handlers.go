package session

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/qrave1/TeleVisit/internal/application/constant"
	"github.com/qrave1/TeleVisit/internal/domain"
	"github.com/qrave1/TeleVisit/internal/domain/events"
	"github.com/qrave1/TeleVisit/internal/signaling"
)

var errNotAdmitted = errors.New("negotiation before admission")

// routes - таблица диспетчеризации по типу конверта, каждый тип у одного владельца
func (c *Controller) routes() map[events.MessageType]func(events.Envelope) error {
	return map[events.MessageType]func(events.Envelope) error{
		events.TypeAnnounce:           c.onAnnounce,
		events.TypeJoinRequest:        c.onJoinRequest,
		events.TypeConnectionGranted:  c.onGranted,
		events.TypeConnectionRejected: c.onRejected,
		events.TypeOffer:              c.onOffer,
		events.TypeAnswer:             c.onAnswer,
		events.TypeCandidate:          c.onCandidate,
		events.TypeChat:               c.onChat,
		events.TypeFileShare:          c.onFileShare,
		events.TypePeerJoined:         c.onPeerJoined,
		events.TypePeerLeft:           c.onPeerLeft,
		events.TypePing:               func(events.Envelope) error { return nil },
		events.TypeError:              c.onRelayError,
	}
}

func (c *Controller) dispatch(conn signaling.Conn, env events.Envelope) {
	if c.status == domain.StatusEnded || c.link != conn {
		return
	}

	h, ok := c.handlers[env.Type]
	if !ok {
		slog.Debug("unhandled envelope", slog.String(constant.Type, string(env.Type)), slog.String(constant.PeerID, env.From))
		return
	}

	// ошибка обработчика пропускает шаг, но не роняет звонок
	if err := h(env); err != nil {
		slog.Warn(
			"envelope handling failed",
			slog.Any(constant.Error, err),
			slog.String(constant.Type, string(env.Type)),
			slog.String(constant.PeerID, env.From),
		)
	}
}

func (c *Controller) onAnnounce(env events.Envelope) error {
	var ev events.AnnounceEvent
	if err := env.Decode(&ev); err != nil {
		return err
	}

	slog.Info(
		"peer announced",
		slog.String(constant.PeerID, env.From),
		slog.String(constant.Role, string(ev.Role)),
		slog.String(constant.UserName, ev.Name),
	)

	return nil
}

func (c *Controller) onJoinRequest(env events.Envelope) error {
	var ev events.JoinRequestEvent
	if err := env.Decode(&ev); err != nil {
		return err
	}

	if err := c.admission.HandleJoinRequest(env.From, ev); err != nil {
		return err
	}

	c.notify(LevelInfo, fmt.Sprintf("%s is waiting to join", ev.Name))

	return nil
}

// onGranted - только после допуска пациент начинает согласование
func (c *Controller) onGranted(env events.Envelope) error {
	if err := c.admission.HandleGranted(env.From); err != nil {
		return err
	}

	c.notify(LevelInfo, "admitted to the call")

	if err := c.peer.CreateOfferAndSend(env.From); err != nil {
		c.notify(LevelWarn, "could not start negotiation")
		return err
	}

	return nil
}

func (c *Controller) onRejected(env events.Envelope) error {
	var ev events.DecisionEvent
	if len(env.Payload) > 0 {
		if err := env.Decode(&ev); err != nil {
			slog.Debug("rejection without message", slog.Any(constant.Error, err))
		}
	}

	if err := c.admission.HandleRejected(env.From, ev.Message); err != nil {
		return err
	}

	msg := "the clinician declined the request"
	if ev.Message != "" {
		msg += ": " + ev.Message
	}

	c.notify(LevelError, msg)
	c.end(domain.EndRejected)

	return nil
}

func (c *Controller) onOffer(env events.Envelope) error {
	if !c.mayNegotiate(env.From) {
		return fmt.Errorf("%w: offer from %s", errNotAdmitted, env.From)
	}

	offer, err := env.DecodeDescription()
	if err != nil {
		return err
	}

	return c.peer.CreateAnswerAndSend(env.From, offer)
}

func (c *Controller) onAnswer(env events.Envelope) error {
	if !c.mayNegotiate(env.From) {
		return fmt.Errorf("%w: answer from %s", errNotAdmitted, env.From)
	}

	answer, err := env.DecodeDescription()
	if err != nil {
		return err
	}

	return c.peer.HandleAnswer(env.From, answer)
}

func (c *Controller) onCandidate(env events.Envelope) error {
	if !c.mayNegotiate(env.From) {
		return fmt.Errorf("%w: candidate from %s", errNotAdmitted, env.From)
	}

	candidate, err := env.DecodeCandidate()
	if err != nil {
		return err
	}

	return c.peer.ApplyCandidate(candidate)
}

func (c *Controller) onChat(env events.Envelope) error {
	var ev events.ChatEvent
	if err := env.Decode(&ev); err != nil {
		return err
	}

	c.side.HandleChat(env.From, ev)
	c.touch()

	return nil
}

func (c *Controller) onFileShare(env events.Envelope) error {
	var ev events.FileShareEvent
	if err := env.Decode(&ev); err != nil {
		return err
	}

	f, err := c.side.HandleFileShare(env.From, ev)
	if err != nil {
		return err
	}

	c.notify(LevelInfo, "file shared: "+f.Name)

	return nil
}

func (c *Controller) onPeerJoined(env events.Envelope) error {
	slog.Info("peer joined room", slog.String(constant.PeerID, env.Peer), slog.String(constant.RoomID, c.cfg.Room))
	return nil
}

// onPeerLeft - ушёл собеседник: звонок завершается, ушёл ожидающий пациент: убираем запрос
func (c *Controller) onPeerLeft(env events.Envelope) error {
	left := env.Peer

	remote := c.peer.RemotePeer()
	if remote == "" && c.cfg.Role == domain.RolePatient {
		remote = c.admission.Granter()
	}

	if left != "" && left == remote {
		c.notify(LevelInfo, "the other participant left the call")
		c.end(domain.EndRemoteLeft)
		return nil
	}

	if c.admission.Remove(left) {
		c.touch()
	}

	return nil
}

func (c *Controller) onRelayError(env events.Envelope) error {
	msg, err := env.ErrorMessage()
	if err != nil {
		return err
	}

	c.notify(LevelWarn, "relay: "+msg)

	return nil
}

// mayNegotiate - offer/answer/candidate принимаются только от допущенного собеседника
func (c *Controller) mayNegotiate(from string) bool {
	switch c.cfg.Role {
	case domain.RoleClinician:
		return c.admission.Admitted(from)
	case domain.RolePatient:
		return c.admission.Granted() && from == c.admission.Granter()
	default:
		return false
	}
}
