package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/qrave1/TeleVisit/internal/application/constant"
	"github.com/qrave1/TeleVisit/internal/application/metric"
	"github.com/qrave1/TeleVisit/internal/domain/events"
	"github.com/qrave1/TeleVisit/internal/domain/repository"
	"github.com/qrave1/TeleVisit/internal/infra/adapters/memory"
)

var ErrPeerTaken = errors.New("peer id already connected to room")

// RelayUsecase пересылает конверты сигналинга внутри комнаты. Состояния звонка не хранит.
type RelayUsecase interface {
	Join(ctx context.Context, room, peerID string, conn events.Sender) error
	Leave(ctx context.Context, room, peerID string, conn events.Sender)

	// Forward перезаписывает from и отправляет адресату to, либо всем остальным в комнате
	Forward(ctx context.Context, room, from string, env events.Envelope)

	Peers(ctx context.Context, room string) ([]string, error)
}

type relayUsecase struct {
	connRepo     memory.RoomConnectionRepository
	presenceRepo repository.PresenceRepository
}

func NewRelayUsecase(connRepo memory.RoomConnectionRepository, presenceRepo repository.PresenceRepository) RelayUsecase {
	return &relayUsecase{
		connRepo:     connRepo,
		presenceRepo: presenceRepo,
	}
}

func (r *relayUsecase) Join(ctx context.Context, room, peerID string, conn events.Sender) error {
	if !r.connRepo.Add(room, peerID, conn) {
		return fmt.Errorf("%w: %s", ErrPeerTaken, peerID)
	}

	if err := r.presenceRepo.Join(ctx, room, peerID); err != nil {
		slog.Error("presence join", slog.Any(constant.Error, err), slog.String(constant.RoomID, room))
	}

	slog.Info("peer joined room", slog.String(constant.RoomID, room), slog.String(constant.PeerID, peerID))

	r.broadcast(room, peerID, events.Envelope{Type: events.TypePeerJoined, Peer: peerID})

	return nil
}

func (r *relayUsecase) Leave(ctx context.Context, room, peerID string, conn events.Sender) {
	if !r.connRepo.Remove(room, peerID, conn) {
		return
	}

	if err := r.presenceRepo.Leave(ctx, room, peerID); err != nil {
		slog.Error("presence leave", slog.Any(constant.Error, err), slog.String(constant.RoomID, room))
	}

	slog.Info("peer left room", slog.String(constant.RoomID, room), slog.String(constant.PeerID, peerID))

	r.broadcast(room, peerID, events.Envelope{Type: events.TypePeerLeft, Peer: peerID})
}

func (r *relayUsecase) Forward(_ context.Context, room, from string, env events.Envelope) {
	switch env.Type {
	case events.TypePeerJoined, events.TypePeerLeft, events.TypeError:
		// эти типы рассылает только relay
		r.replyError(room, from, fmt.Sprintf("type %s is reserved", env.Type))
		return
	}

	env.From = from

	if env.To == "" {
		r.broadcast(room, from, env)
		metric.RecordRelayForward(string(env.Type), false)
		return
	}

	conn, ok := r.connRepo.Get(room, env.To)
	if !ok || env.To == from {
		r.replyError(room, from, fmt.Sprintf("peer %s is not in room", env.To))
		return
	}

	if err := conn.Send(env); err != nil {
		slog.Warn(
			"forward envelope",
			slog.Any(constant.Error, err),
			slog.String(constant.Type, string(env.Type)),
			slog.String(constant.PeerID, env.To),
		)
	}

	metric.RecordRelayForward(string(env.Type), true)
}

func (r *relayUsecase) Peers(ctx context.Context, room string) ([]string, error) {
	return r.presenceRepo.Members(ctx, room)
}

func (r *relayUsecase) broadcast(room, except string, env events.Envelope) {
	for peerID, conn := range r.connRepo.Others(room, except) {
		if err := conn.Send(env); err != nil {
			slog.Warn(
				"broadcast envelope",
				slog.Any(constant.Error, err),
				slog.String(constant.Type, string(env.Type)),
				slog.String(constant.PeerID, peerID),
			)
		}
	}
}

func (r *relayUsecase) replyError(room, peerID, msg string) {
	conn, ok := r.connRepo.Get(room, peerID)
	if !ok {
		return
	}

	env, err := events.New(events.TypeError, peerID, events.ErrorEvent{Message: msg})
	if err != nil {
		slog.Error("build error envelope", slog.Any(constant.Error, err))
		return
	}

	env.Message = msg

	if err = conn.Send(env); err != nil {
		slog.Warn("send error envelope", slog.Any(constant.Error, err), slog.String(constant.PeerID, peerID))
	}
}
