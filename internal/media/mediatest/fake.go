// Package mediatest - фейковые треки и устройства для тестов без камеры
package mediatest

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/qrave1/TeleVisit/internal/domain"
	"github.com/qrave1/TeleVisit/internal/media"
)

type Track struct {
	id   string
	kind media.Kind

	mu      sync.Mutex
	enabled bool
	stopped bool
	onEnded func()
}

func NewTrack(kind media.Kind) *Track {
	return &Track{
		id:      string(kind) + "-" + uuid.NewString()[:8],
		kind:    kind,
		enabled: true,
	}
}

func (t *Track) ID() string               { return t.id }
func (t *Track) Kind() media.Kind         { return t.kind }
func (t *Track) Local() webrtc.TrackLocal { return nil }

func (t *Track) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Track) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *Track) OnEnded(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnded = fn
}

func (t *Track) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *Track) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// End имитирует завершение источника, например остановку показа экрана из ОС
func (t *Track) End() {
	t.mu.Lock()
	fn := t.onEnded
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func NewStream() *media.Stream {
	return &media.Stream{
		ID:    uuid.NewString(),
		Audio: NewTrack(media.KindAudio),
		Video: NewTrack(media.KindVideo),
	}
}

// Capturer отдаёт заранее заданные результаты. Gate, если задан, держит вызов до закрытия.
type Capturer struct {
	mu sync.Mutex

	UserMediaErr error
	DisplayErr   error
	Gate         chan struct{}
	Facings      []domain.Facing
	Streams      []*media.Stream
	Screens      []*Track
}

func (c *Capturer) UserMedia(ctx context.Context, facing domain.Facing) (*media.Stream, error) {
	c.wait(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.Facings = append(c.Facings, facing)

	if c.UserMediaErr != nil {
		return nil, c.UserMediaErr
	}

	s := NewStream()
	c.Streams = append(c.Streams, s)

	return s, nil
}

func (c *Capturer) DisplayMedia(ctx context.Context) (media.Track, error) {
	c.wait(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.DisplayErr != nil {
		return nil, c.DisplayErr
	}

	t := NewTrack(media.KindVideo)
	c.Screens = append(c.Screens, t)

	return t, nil
}

func (c *Capturer) LastStream() *media.Stream {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.Streams) == 0 {
		return nil
	}

	return c.Streams[len(c.Streams)-1]
}

func (c *Capturer) LastScreen() *Track {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.Screens) == 0 {
		return nil
	}

	return c.Screens[len(c.Screens)-1]
}

func (c *Capturer) wait(ctx context.Context) {
	c.mu.Lock()
	gate := c.Gate
	c.mu.Unlock()

	if gate == nil {
		return
	}

	select {
	case <-gate:
	case <-ctx.Done():
	}
}
