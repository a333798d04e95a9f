package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/qrave1/TeleVisit/internal/application/constant"
	"github.com/qrave1/TeleVisit/internal/domain"
)

// State - то, что показываем пользователю про локальные устройства
type State struct {
	StreamID      string        `json:"stream_id,omitempty"`
	HasAudio      bool          `json:"has_audio"`
	HasVideo      bool          `json:"has_video"`
	Muted         bool          `json:"muted"`
	VideoEnabled  bool          `json:"video_enabled"`
	Facing        domain.Facing `json:"facing"`
	ScreenSharing bool          `json:"screen_sharing"`
}

// Controller владеет локальными треками одного звонка.
// Все методы вызываются из цикла сессии, результаты захвата возвращаются через post.
type Controller struct {
	capturer Capturer
	post     func(func())
	onChange func()
	outgoing Outgoing

	local  *Stream
	screen Track
	facing domain.Facing

	muted    bool
	videoOff bool
	pending  bool
	closed   bool
}

func NewController(capturer Capturer, post func(func())) *Controller {
	return &Controller{
		capturer: capturer,
		post:     post,
		onChange: func() {},
		facing:   domain.FacingUser,
	}
}

func (c *Controller) SetOutgoing(o Outgoing) {
	c.outgoing = o
}

// OnChange вызывается после каждого изменения State
func (c *Controller) OnChange(fn func()) {
	c.onChange = fn
}

func (c *Controller) State() State {
	s := State{
		Muted:         c.muted,
		VideoEnabled:  !c.videoOff,
		Facing:        c.facing,
		ScreenSharing: c.screen != nil,
	}

	if c.local != nil {
		s.StreamID = c.local.ID
		s.HasAudio = c.local.Audio != nil
		s.HasVideo = c.local.Video != nil
	}

	return s
}

// Local - текущий поток для превью, nil если устройств нет
func (c *Controller) Local() *Stream {
	return c.local
}

// OutgoingTracks - треки для нового движка: микрофон и камера, либо экран вместо камеры
func (c *Controller) OutgoingTracks() []Track {
	if c.local == nil {
		if c.screen != nil {
			return []Track{c.screen}
		}
		return nil
	}

	tracks := make([]Track, 0, 2)
	if c.local.Audio != nil {
		tracks = append(tracks, c.local.Audio)
	}

	switch {
	case c.screen != nil:
		tracks = append(tracks, c.screen)
	case c.local.Video != nil:
		tracks = append(tracks, c.local.Video)
	}

	return tracks
}

// Acquire захватывает камеру и микрофон. Ошибка устройства не фатальна для звонка.
func (c *Controller) Acquire(ctx context.Context, facing domain.Facing, done func(error)) {
	if c.closed {
		done(ErrClosed)
		return
	}

	if c.pending {
		done(ErrBusy)
		return
	}

	c.pending = true

	go func() {
		stream, err := c.capturer.UserMedia(ctx, facing)

		c.post(func() {
			c.pending = false

			if c.closed {
				if stream != nil {
					stream.Stop()
				}
				done(ErrClosed)
				return
			}

			if err != nil {
				done(fmt.Errorf("acquire local media: %w", err))
				return
			}

			if c.local != nil {
				c.local.Stop()
			}

			c.local = stream
			c.facing = facing
			c.applyFlags()
			c.watchCamera(stream)
			c.onChange()

			done(nil)
		})
	}()
}

func (c *Controller) SetMuted(muted bool) error {
	if c.closed {
		return ErrClosed
	}

	if c.local == nil || c.local.Audio == nil {
		return ErrNoDevice
	}

	c.muted = muted
	c.local.Audio.SetEnabled(!muted)
	c.onChange()

	return nil
}

func (c *Controller) SetVideoEnabled(enabled bool) error {
	if c.closed {
		return ErrClosed
	}

	if c.local == nil || c.local.Video == nil {
		return ErrNoDevice
	}

	c.videoOff = !enabled
	c.local.Video.SetEnabled(enabled)
	c.onChange()

	return nil
}

// FlipCamera перезахватывает поток с другой камеры и подменяет исходящие треки без новой
// пары offer/answer. Во время показа экрана исходящее видео остаётся экраном.
func (c *Controller) FlipCamera(ctx context.Context, done func(error)) {
	if c.closed {
		done(ErrClosed)
		return
	}

	if c.pending {
		done(ErrBusy)
		return
	}

	if c.local == nil {
		done(ErrNoDevice)
		return
	}

	c.pending = true
	next := c.facing.Opposite()

	go func() {
		stream, err := c.capturer.UserMedia(ctx, next)

		c.post(func() {
			c.pending = false

			if c.closed {
				if stream != nil {
					stream.Stop()
				}
				done(ErrClosed)
				return
			}

			if err != nil {
				done(fmt.Errorf("flip camera: %w", err))
				return
			}

			done(c.swapStream(stream, next))
		})
	}()
}

func (c *Controller) swapStream(stream *Stream, facing domain.Facing) error {
	old := c.local

	c.local = stream
	c.facing = facing
	c.applyFlags()
	c.watchCamera(stream)

	var errs []error

	if c.outgoing != nil && c.outgoing.HasEngine() {
		if c.screen == nil && stream.Video != nil {
			if err := c.outgoing.ReplaceOutgoingTrack(KindVideo, stream.Video); err != nil {
				errs = append(errs, fmt.Errorf("replace video: %w", err))
			}
		}

		if stream.Audio != nil && (old == nil || old.Audio != stream.Audio) {
			if err := c.outgoing.ReplaceOutgoingTrack(KindAudio, stream.Audio); err != nil {
				errs = append(errs, fmt.Errorf("replace audio: %w", err))
			}
		}
	}

	if old != nil {
		old.Stop()
	}

	c.onChange()

	return errors.Join(errs...)
}

// StartScreenShare подменяет только исходящее видео. Камера остаётся в local и
// возвращается в отправителя при остановке показа.
func (c *Controller) StartScreenShare(ctx context.Context, done func(error)) {
	if c.closed {
		done(ErrClosed)
		return
	}

	if c.screen != nil {
		done(ErrAlreadySharing)
		return
	}

	if c.pending {
		done(ErrBusy)
		return
	}

	c.pending = true

	go func() {
		screen, err := c.capturer.DisplayMedia(ctx)

		c.post(func() {
			c.pending = false

			if c.closed {
				if screen != nil {
					screen.Stop()
				}
				done(ErrClosed)
				return
			}

			if err != nil {
				done(fmt.Errorf("start screen share: %w", err))
				return
			}

			if c.outgoing != nil && c.outgoing.HasEngine() {
				if err = c.outgoing.ReplaceOutgoingTrack(KindVideo, screen); err != nil {
					screen.Stop()
					done(fmt.Errorf("start screen share: %w", err))
					return
				}
			}

			c.screen = screen

			// Показ остановили из ОС - откатываемся так же, как по кнопке
			screen.OnEnded(func() {
				c.post(func() {
					if c.screen != screen {
						return
					}

					slog.Info("screen capture ended by source")

					if err := c.StopScreenShare(); err != nil {
						slog.Warn("revert screen share", slog.Any(constant.Error, err))
					}
				})
			})

			c.onChange()
			done(nil)
		})
	}()
}

func (c *Controller) StopScreenShare() error {
	if c.closed {
		return ErrClosed
	}

	if c.screen == nil {
		return ErrNotSharing
	}

	screen := c.screen
	c.screen = nil

	var err error

	if c.outgoing != nil && c.outgoing.HasEngine() {
		var camera Track
		if c.local != nil {
			camera = c.local.Video
		}

		if err = c.outgoing.ReplaceOutgoingTrack(KindVideo, camera); err != nil {
			err = fmt.Errorf("restore camera: %w", err)
		}
	}

	screen.Stop()
	c.onChange()

	return err
}

// Close останавливает все треки. Захват, завершившийся позже, будет сразу остановлен.
func (c *Controller) Close() {
	if c.closed {
		return
	}

	c.closed = true

	if c.screen != nil {
		c.screen.Stop()
		c.screen = nil
	}

	if c.local != nil {
		c.local.Stop()
		c.local = nil
	}
}

func (c *Controller) applyFlags() {
	if c.local == nil {
		return
	}

	if c.local.Audio != nil {
		c.local.Audio.SetEnabled(!c.muted)
	}

	if c.local.Video != nil {
		c.local.Video.SetEnabled(!c.videoOff)
	}
}

// watchCamera - если камеру выдернули, убираем её из состояния
func (c *Controller) watchCamera(stream *Stream) {
	if stream == nil || stream.Video == nil {
		return
	}

	video := stream.Video
	video.OnEnded(func() {
		c.post(func() {
			if c.local == nil || c.local.Video != video {
				return
			}

			slog.Warn("camera track ended", slog.String(constant.StreamID, c.local.ID))

			c.local.Video = nil
			c.onChange()
		})
	})
}
