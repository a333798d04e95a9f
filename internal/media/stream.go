package media

import (
	"context"
	"errors"

	"github.com/qrave1/TeleVisit/internal/domain"
)

var (
	ErrPermissionDenied = errors.New("capture permission denied")
	ErrNoDevice         = errors.New("no capture device")
	ErrClosed           = errors.New("media controller closed")
	ErrBusy             = errors.New("capture already in progress")
	ErrNotSharing       = errors.New("screen share is not active")
	ErrAlreadySharing   = errors.New("screen share already active")
)

// Stream - локальный поток с камеры и микрофона, любой из треков может отсутствовать
type Stream struct {
	ID    string
	Audio Track
	Video Track
}

func (s *Stream) Tracks() []Track {
	if s == nil {
		return nil
	}

	tracks := make([]Track, 0, 2)
	if s.Audio != nil {
		tracks = append(tracks, s.Audio)
	}
	if s.Video != nil {
		tracks = append(tracks, s.Video)
	}

	return tracks
}

func (s *Stream) Stop() {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

// Capturer - доступ к устройствам. Вызовы блокирующие.
type Capturer interface {
	UserMedia(ctx context.Context, facing domain.Facing) (*Stream, error)
	DisplayMedia(ctx context.Context) (Track, error)
}

// Outgoing - то, куда контроллер подменяет исходящие треки
type Outgoing interface {
	HasEngine() bool
	ReplaceOutgoingTrack(kind Kind, track Track) error
}
