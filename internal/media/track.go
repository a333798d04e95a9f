package media

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/qrave1/TeleVisit/internal/application/constant"
)

type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

func KindOf(t webrtc.RTPCodecType) Kind {
	if t == webrtc.RTPCodecTypeVideo {
		return KindVideo
	}

	return KindAudio
}

// Track - локальный трек. Выключенный трек остаётся в отправителе, но пакеты не уходят.
type Track interface {
	ID() string
	Kind() Kind
	Enabled() bool
	SetEnabled(enabled bool)

	// OnEnded вызывается, если источник закончился сам, а не через Stop
	OnEnded(fn func())
	Stop()

	// Local - трек для RTPSender, у фейков может быть nil
	Local() webrtc.TrackLocal
}

// PacketSource - источник готовых RTP пакетов, например mediadevices.RTPReadCloser
type PacketSource interface {
	Read() ([]*rtp.Packet, func(), error)
	Close() error
}

type rtpTrack struct {
	local  *webrtc.TrackLocalStaticRTP
	kind   Kind
	source PacketSource

	enabled   atomic.Bool
	stopped   atomic.Bool
	forwarded atomic.Uint64

	mu      sync.Mutex
	ended   bool
	onEnded func()
	once    sync.Once
}

// NewRTPTrack запускает перекачку пакетов из src в TrackLocalStaticRTP
func NewRTPTrack(kind Kind, codec webrtc.RTPCodecCapability, id, streamID string, src PacketSource) (Track, error) {
	local, err := webrtc.NewTrackLocalStaticRTP(codec, id, streamID)
	if err != nil {
		return nil, fmt.Errorf("create %s track: %w", kind, err)
	}

	t := &rtpTrack{
		local:  local,
		kind:   kind,
		source: src,
	}
	t.enabled.Store(true)

	go t.pump()

	return t, nil
}

func (t *rtpTrack) ID() string               { return t.local.ID() }
func (t *rtpTrack) Kind() Kind               { return t.kind }
func (t *rtpTrack) Enabled() bool            { return t.enabled.Load() }
func (t *rtpTrack) SetEnabled(enabled bool)  { t.enabled.Store(enabled) }
func (t *rtpTrack) Local() webrtc.TrackLocal { return t.local }

func (t *rtpTrack) OnEnded(fn func()) {
	t.mu.Lock()
	ended := t.ended
	t.onEnded = fn
	t.mu.Unlock()

	if ended && fn != nil {
		fn()
	}
}

func (t *rtpTrack) Stop() {
	t.once.Do(func() {
		t.stopped.Store(true)

		if err := t.source.Close(); err != nil {
			slog.Debug("close track source", slog.Any(constant.Error, err), slog.String(constant.Kind, string(t.kind)))
		}
	})
}

func (t *rtpTrack) pump() {
	for {
		pkts, release, err := t.source.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) && !t.stopped.Load() {
				slog.Warn("track source failed", slog.Any(constant.Error, err), slog.String(constant.Kind, string(t.kind)))
			}

			t.finish()
			return
		}

		if t.enabled.Load() {
			for _, pkt := range pkts {
				if pkt == nil {
					continue
				}

				if err = t.local.WriteRTP(pkt); err != nil && !errors.Is(err, io.ErrClosedPipe) {
					slog.Debug("write rtp", slog.Any(constant.Error, err))
				}

				t.forwarded.Add(1)
			}
		}

		if release != nil {
			release()
		}
	}
}

func (t *rtpTrack) finish() {
	if t.stopped.Load() {
		return
	}

	t.mu.Lock()
	t.ended = true
	fn := t.onEnded
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}
