package session

import (
	"github.com/qrave1/TeleVisit/internal/admission"
	"github.com/qrave1/TeleVisit/internal/domain"
	"github.com/qrave1/TeleVisit/internal/media"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notice - короткое уведомление для пользователя, звонок оно не прерывает
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Snapshot - всё, что видит пользователь в момент обновления
type Snapshot struct {
	Status       domain.CallStatus `json:"status"`
	EndReason    domain.EndReason  `json:"end_reason,omitempty"`
	Reconnecting bool              `json:"reconnecting"`
	Quality      domain.Quality    `json:"quality,omitempty"`

	Role       domain.Role     `json:"role"`
	PeerID     string          `json:"peer_id"`
	RemotePeer string          `json:"remote_peer,omitempty"`
	Admission  admission.State `json:"admission"`

	Media         media.State `json:"media"`
	RemoteStreams []string    `json:"remote_streams,omitempty"`

	Chat         []domain.ChatEntry   `json:"chat,omitempty"`
	Requests     []domain.JoinRequest `json:"requests,omitempty"`
	FileReceived *domain.SharedFile   `json:"file_received,omitempty"`
	FileShared   *domain.SharedFile   `json:"file_shared,omitempty"`
}

// Update приходит подписчикам после каждой задачи цикла, изменившей состояние
type Update struct {
	Snapshot Snapshot `json:"snapshot"`
	Notice   *Notice  `json:"notice,omitempty"`
}

func (c *Controller) snapshot() Snapshot {
	return Snapshot{
		Status:        c.status,
		EndReason:     c.reason,
		Reconnecting:  c.reconnecting,
		Quality:       c.quality,
		Role:          c.cfg.Role,
		PeerID:        c.cfg.PeerID,
		RemotePeer:    c.peer.RemotePeer(),
		Admission:     c.admission.State(),
		Media:         c.media.State(),
		RemoteStreams: c.peer.RemoteStreams(),
		Chat:          c.side.Transcript(),
		Requests:      c.admission.Requests(),
		FileReceived:  copyFile(c.side.Received()),
		FileShared:    copyFile(c.side.Shared()),
	}
}

func (c *Controller) touch() {
	c.dirty = true
}

func (c *Controller) notify(level Level, msg string) {
	c.notices = append(c.notices, Notice{Level: level, Message: msg})
}

// flush рассылает одно обновление на каждое уведомление или одно без уведомления
func (c *Controller) flush() {
	if !c.dirty && len(c.notices) == 0 {
		return
	}

	snap := c.snapshot()
	notices := c.notices

	c.dirty = false
	c.notices = nil

	if len(notices) == 0 {
		c.publish(Update{Snapshot: snap})
		return
	}

	for i := range notices {
		c.publish(Update{Snapshot: snap, Notice: &notices[i]})
	}
}

func (c *Controller) publish(u Update) {
	for _, ch := range c.subs {
		select {
		case ch <- u:
			continue
		default:
		}

		// подписчик отстал: выбрасываем самое старое
		select {
		case <-ch:
		default:
		}

		select {
		case ch <- u:
		default:
		}
	}
}

func copyFile(f *domain.SharedFile) *domain.SharedFile {
	if f == nil {
		return nil
	}

	cp := *f

	return &cp
}

// Err - причина аварийного завершения звонка, nil пока звонок идёт или завершён штатно
func (s Snapshot) Err() error {
	if s.Status != domain.StatusEnded {
		return nil
	}

	switch s.EndReason {
	case domain.EndRejected:
		return ErrRejected
	case domain.EndLinkLost:
		return ErrLinkLost
	default:
		return nil
	}
}
