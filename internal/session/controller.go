// Package session - контроллер звонка: связывает сигналинг, согласование, медиа,
// комнату ожидания и чат в одном цикле событий.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/qrave1/TeleVisit/internal/admission"
	"github.com/qrave1/TeleVisit/internal/application/config"
	"github.com/qrave1/TeleVisit/internal/application/constant"
	"github.com/qrave1/TeleVisit/internal/application/metric"
	"github.com/qrave1/TeleVisit/internal/domain"
	"github.com/qrave1/TeleVisit/internal/domain/events"
	"github.com/qrave1/TeleVisit/internal/media"
	"github.com/qrave1/TeleVisit/internal/peer"
	"github.com/qrave1/TeleVisit/internal/sidechannel"
	"github.com/qrave1/TeleVisit/internal/signaling"
)

var (
	ErrEnded     = errors.New("call ended")
	ErrNotIdle   = errors.New("call already started")
	ErrNotJoined = errors.New("call not started")
	ErrLinkLost  = errors.New("signaling link lost")
	ErrRejected  = errors.New("join request rejected")
	ErrNoUpload  = errors.New("file storage is not configured")
)

const defaultQualityInterval = 2 * time.Second

// DefaultICEServers - публичный STUN, если конфигурацию ICE получить не удалось
var DefaultICEServers = []webrtc.ICEServer{{URLs: []string{config.DefaultSTUN}}}

// ICEProvider отдаёт список STUN/TURN серверов для движка
type ICEProvider interface {
	ICEServers(ctx context.Context) ([]webrtc.ICEServer, error)
}

// Uploader кладёт файл во внешнее хранилище и возвращает подписанную ссылку
type Uploader interface {
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
}

type Config struct {
	Role   domain.Role
	Name   string
	Room   string
	PeerID string
	Intake string
	Facing domain.Facing

	Dialer   signaling.Dialer
	Capturer media.Capturer
	Engines  peer.Factory

	// ICE и Files необязательны
	ICE   ICEProvider
	Files Uploader

	QualityInterval time.Duration
}

// Controller - один звонок. Все поля ниже mailbox меняются только в цикле.
type Controller struct {
	cfg Config
	box *mailbox

	ctx    context.Context
	cancel context.CancelFunc

	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	status       domain.CallStatus
	reason       domain.EndReason
	reconnecting bool
	quality      domain.Quality

	link      signaling.Conn
	media     *media.Controller
	peer      *peer.Session
	admission *admission.Controller
	side      *sidechannel.Channel
	handlers  map[events.MessageType]func(events.Envelope) error

	qualityStop chan struct{}

	subs    map[int]chan Update
	nextSub int
	dirty   bool
	notices []Notice
	final   Snapshot
}

func New(cfg Config) *Controller {
	if cfg.PeerID == "" {
		cfg.PeerID = uuid.NewString()
	}

	if cfg.Facing == "" {
		cfg.Facing = domain.FacingUser
	}

	if cfg.QualityInterval <= 0 {
		cfg.QualityInterval = defaultQualityInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		cfg:     cfg,
		box:     newMailbox(),
		ctx:     ctx,
		cancel:  cancel,
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
		status:  domain.StatusIdle,
		subs:    make(map[int]chan Update),
	}

	out := linkSender{c: c}

	c.media = media.NewController(cfg.Capturer, c.post)
	c.peer = peer.NewSession(peer.Config{
		Factory: cfg.Engines,
		Signal:  out,
		Post:    c.post,
		Tracks:  c.media.OutgoingTracks,
	})
	c.media.SetOutgoing(c.peer)
	c.media.OnChange(c.touch)

	c.peer.OnConnectionState(c.onConnectionState)
	c.peer.OnRemoteStream(func(string) { c.touch() })

	c.admission = admission.NewController(cfg.Role, out)
	c.side = sidechannel.New(out, cfg.Name)
	c.handlers = c.routes()

	go func() {
		defer close(c.stopped)
		c.box.loop(c.quit)
	}()

	return c
}

// PeerID - идентификатор этого клиента в комнате
func (c *Controller) PeerID() string {
	return c.cfg.PeerID
}

// Join захватывает устройства, получает ICE серверы и подключается к комнате.
// Пациент сразу отправляет join_request. Возвращает управление, когда комната открыта.
func (c *Controller) Join(ctx context.Context) error {
	return c.await(ctx, func(done func(error)) {
		switch c.status {
		case domain.StatusIdle:
		case domain.StatusEnded:
			done(ErrEnded)
			return
		default:
			done(ErrNotIdle)
			return
		}

		c.setStatus(domain.StatusConnecting)

		c.media.Acquire(c.ctx, c.cfg.Facing, func(err error) {
			if c.status == domain.StatusEnded {
				done(ErrEnded)
				return
			}

			if err != nil {
				// без устройств звонок продолжается, управление медиа просто недоступно
				slog.Warn("local media unavailable", slog.Any(constant.Error, err))
				c.notify(LevelWarn, "camera or microphone unavailable: "+err.Error())
			}

			c.connect(done)
		})
	})
}

// End завершает звонок. Повторный вызов ничего не делает.
func (c *Controller) End() error {
	return c.exec(func() error {
		c.end(domain.EndLocal)
		return nil
	})
}

// Close завершает звонок, закрывает подписки и останавливает цикл
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		_ = c.exec(func() error {
			c.end(domain.EndLocal)
			c.flush()
			c.final = c.snapshot()

			for id, ch := range c.subs {
				close(ch)
				delete(c.subs, id)
			}

			return nil
		})

		close(c.quit)
		<-c.stopped
	})
}

func (c *Controller) ToggleMute() error {
	return c.exec(func() error {
		if err := c.active(); err != nil {
			return err
		}

		return c.media.SetMuted(!c.media.State().Muted)
	})
}

func (c *Controller) ToggleVideo() error {
	return c.exec(func() error {
		if err := c.active(); err != nil {
			return err
		}

		return c.media.SetVideoEnabled(!c.media.State().VideoEnabled)
	})
}

func (c *Controller) FlipCamera(ctx context.Context) error {
	return c.await(ctx, func(done func(error)) {
		if err := c.active(); err != nil {
			done(err)
			return
		}

		c.media.FlipCamera(c.ctx, c.reportMedia("flip camera", done))
	})
}

func (c *Controller) StartScreenShare(ctx context.Context) error {
	return c.await(ctx, func(done func(error)) {
		if err := c.active(); err != nil {
			done(err)
			return
		}

		c.media.StartScreenShare(c.ctx, c.reportMedia("screen share", done))
	})
}

func (c *Controller) StopScreenShare() error {
	return c.exec(func() error {
		if err := c.active(); err != nil {
			return err
		}

		return c.media.StopScreenShare()
	})
}

func (c *Controller) SendChat(text string) error {
	return c.exec(func() error {
		if err := c.active(); err != nil {
			return err
		}

		if _, err := c.side.SendChat(text); err != nil {
			return err
		}

		c.touch()

		return nil
	})
}

// ShareFile загружает файл во внешнее хранилище и отправляет собеседнику только ссылку
func (c *Controller) ShareFile(ctx context.Context, name string, r io.Reader) error {
	if c.cfg.Files == nil {
		return ErrNoUpload
	}

	if err := c.exec(c.active); err != nil {
		return err
	}

	url, err := c.cfg.Files.Upload(ctx, name, r)
	if err != nil {
		_ = c.exec(func() error {
			c.notify(LevelWarn, fmt.Sprintf("upload %s failed", name))
			return nil
		})

		return fmt.Errorf("upload file: %w", err)
	}

	return c.exec(func() error {
		if err := c.active(); err != nil {
			return err
		}

		if err := c.side.ShareFile(url, name); err != nil {
			return err
		}

		c.touch()

		return nil
	})
}

func (c *Controller) Approve(peerID string) error {
	return c.exec(func() error {
		if err := c.active(); err != nil {
			return err
		}

		if err := c.admission.Approve(peerID); err != nil {
			return err
		}

		c.touch()

		return nil
	})
}

func (c *Controller) Reject(peerID, message string) error {
	return c.exec(func() error {
		if err := c.active(); err != nil {
			return err
		}

		if err := c.admission.Reject(peerID, message); err != nil {
			return err
		}

		c.touch()

		return nil
	})
}

// Transcript - переписка текущего звонка, например для генерации заметок
func (c *Controller) Transcript() []domain.ChatEntry {
	var out []domain.ChatEntry

	_ = c.exec(func() error {
		out = c.side.Transcript()
		return nil
	})

	return out
}

func (c *Controller) Snapshot() Snapshot {
	select {
	case <-c.stopped:
		return c.final
	default:
	}

	var snap Snapshot

	_ = c.exec(func() error {
		snap = c.snapshot()
		return nil
	})

	return snap
}

// Subscribe возвращает канал обновлений и функцию отписки.
// Медленный подписчик теряет старые обновления, последнее всегда доходит.
func (c *Controller) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 32)
	id := -1

	_ = c.exec(func() error {
		select {
		case <-c.quit:
			close(ch)
			return nil
		default:
		}

		id = c.nextSub
		c.nextSub++
		c.subs[id] = ch

		return nil
	})

	cancel := func() {
		c.post(func() {
			if sub, ok := c.subs[id]; ok {
				close(sub)
				delete(c.subs, id)
			}
		})
	}

	return ch, cancel
}

// connect получает ICE серверы и открывает сигналинг вне цикла
func (c *Controller) connect(done func(error)) {
	ctx := c.ctx

	go func() {
		servers := c.iceServers(ctx)

		hello := events.AnnounceEvent{Role: c.cfg.Role, Name: c.cfg.Name}

		var conn signaling.Conn

		onMessage := func(env events.Envelope) {
			c.post(func() { c.dispatch(conn, env) })
		}

		onClose := func(err error) {
			c.post(func() { c.linkClosed(conn, err) })
		}

		conn, err := c.cfg.Dialer.Dial(ctx, c.cfg.Room, c.cfg.PeerID, hello, onMessage, onClose)

		c.post(func() {
			if c.status == domain.StatusEnded {
				if conn != nil {
					_ = conn.Close()
				}
				done(ErrEnded)
				return
			}

			if err != nil {
				c.notify(LevelError, "cannot reach signaling relay")
				c.end(domain.EndLinkLost)
				done(fmt.Errorf("%w: %v", ErrLinkLost, err))
				return
			}

			c.link = conn
			c.peer.SetICEServers(servers)
			conn.Start()

			slog.Info(
				"joined room",
				slog.String(constant.RoomID, c.cfg.Room),
				slog.String(constant.PeerID, c.cfg.PeerID),
				slog.String(constant.Role, string(c.cfg.Role)),
			)

			if c.cfg.Role == domain.RolePatient {
				if err = c.admission.RequestJoin(c.cfg.Name, c.cfg.Intake); err != nil {
					c.end(domain.EndLinkLost)
					done(fmt.Errorf("%w: %v", ErrLinkLost, err))
					return
				}
			}

			c.touch()
			done(nil)
		})
	}()
}

func (c *Controller) iceServers(ctx context.Context) []webrtc.ICEServer {
	if c.cfg.ICE == nil {
		return DefaultICEServers
	}

	servers, err := c.cfg.ICE.ICEServers(ctx)
	if err != nil || len(servers) == 0 {
		slog.Warn("ice config unavailable, using default stun", slog.Any(constant.Error, err))
		return DefaultICEServers
	}

	return servers
}

// end - единственный путь в ended. Освобождает треки, движок и сигналинг.
func (c *Controller) end(reason domain.EndReason) {
	if c.status == domain.StatusEnded {
		return
	}

	c.cancel()
	c.stopQuality()

	c.media.Close()
	c.peer.Close()

	if c.link != nil {
		if err := c.link.Close(); err != nil {
			slog.Debug("close signaling link", slog.Any(constant.Error, err))
		}
		c.link = nil
	}

	c.admission.Reset()
	c.side.Reset()

	c.reason = reason
	c.reconnecting = false
	c.quality = domain.QualityUnknown
	c.setStatus(domain.StatusEnded)

	slog.Info("call ended", slog.String(constant.Reason, string(reason)), slog.String(constant.RoomID, c.cfg.Room))
}

func (c *Controller) setStatus(s domain.CallStatus) {
	if c.status == s {
		return
	}

	c.status = s
	metric.RecordCallStatus(string(s))
	c.touch()
}

// active - интенты медиа и чата доступны только пока звонок не завершён
func (c *Controller) active() error {
	switch c.status {
	case domain.StatusEnded:
		return ErrEnded
	case domain.StatusIdle:
		return ErrNotJoined
	default:
		return nil
	}
}

func (c *Controller) reportMedia(action string, done func(error)) func(error) {
	return func(err error) {
		if err != nil && !errors.Is(err, media.ErrClosed) {
			c.notify(LevelWarn, fmt.Sprintf("%s failed: %v", action, err))
		}

		done(err)
	}
}

func (c *Controller) onConnectionState(state webrtc.PeerConnectionState) {
	switch state {
	case webrtc.PeerConnectionStateConnected:
		if c.reconnecting {
			c.reconnecting = false
			c.touch()
		}

		if c.status == domain.StatusConnecting {
			c.setStatus(domain.StatusConnected)
			c.startQuality()
		}
	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed:
		if c.status == domain.StatusConnected && !c.reconnecting {
			c.reconnecting = true
			c.notify(LevelWarn, "connection interrupted, reconnecting")
		}
	}
}

func (c *Controller) linkClosed(conn signaling.Conn, err error) {
	if c.status == domain.StatusEnded || c.link != conn {
		return
	}

	slog.Error("signaling link lost", slog.Any(constant.Error, err), slog.String(constant.RoomID, c.cfg.Room))

	c.link = nil
	c.notify(LevelError, "connection to the relay was lost, join again")
	c.end(domain.EndLinkLost)
}

func (c *Controller) startQuality() {
	if c.qualityStop != nil {
		return
	}

	stop := make(chan struct{})
	c.qualityStop = stop

	go func() {
		ticker := time.NewTicker(c.cfg.QualityInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.post(c.sampleQuality)
			}
		}
	}()
}

func (c *Controller) stopQuality() {
	if c.qualityStop == nil {
		return
	}

	close(c.qualityStop)
	c.qualityStop = nil
}

func (c *Controller) sampleQuality() {
	if c.status != domain.StatusConnected {
		return
	}

	q := c.peer.Quality()
	if q == c.quality {
		return
	}

	c.quality = q
	metric.SetCallQuality(q.Score())
	c.touch()
}

// post ставит задачу в цикл и после неё рассылает накопленные изменения
func (c *Controller) post(fn func()) {
	c.box.post(func() {
		fn()
		c.flush()
	})
}

// exec выполняет fn в цикле и ждёт результат
func (c *Controller) exec(fn func() error) error {
	return c.await(context.Background(), func(done func(error)) {
		done(fn())
	})
}

// await ставит fn в цикл, fn обязана вызвать done ровно один раз
func (c *Controller) await(ctx context.Context, fn func(done func(error))) error {
	res := make(chan error, 1)

	c.post(func() {
		fn(func(err error) {
			select {
			case res <- err:
			default:
			}
		})
	})

	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// linkSender - отправка через текущий сигналинг, вызывается только из цикла
type linkSender struct {
	c *Controller
}

func (s linkSender) Send(env events.Envelope) error {
	if s.c.link == nil {
		return ErrLinkLost
	}

	return s.c.link.Send(env)
}
