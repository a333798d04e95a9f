package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qrave1/TeleVisit/internal/application/constant"
	"github.com/qrave1/TeleVisit/internal/application/metric"
	"github.com/qrave1/TeleVisit/internal/domain/events"
)

const (
	writeWait  = 10 * time.Second
	readWait   = 60 * time.Second
	maxMessage = 1 << 20
)

var ErrClosed = errors.New("signaling link closed")

// Handler получает входящие конверты в порядке чтения из сокета
type Handler func(env events.Envelope)

// Conn - открытый канал сигналинга в одну комнату
type Conn interface {
	events.Sender

	// Start запускает чтение и ping. До Start входящие сообщения не доставляются.
	Start()
	Close() error
}

// Dialer открывает Conn в комнату room под идентификатором peerID
type Dialer interface {
	Dial(
		ctx context.Context,
		room, peerID string,
		hello events.AnnounceEvent,
		onMessage Handler,
		onClose func(error),
	) (Conn, error)
}

type Config struct {
	// BaseURL - адрес relay, http(s):// или ws(s)://
	BaseURL      string
	Token        string
	PingInterval time.Duration

	// ReadTimeout - сколько relay может молчать, прежде чем link считается потерянным.
	// 0 - 60s, отрицательное значение отключает дедлайн.
	ReadTimeout time.Duration
}

type WSDialer struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewDialer(cfg Config) *WSDialer {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 25 * time.Second
	}

	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = readWait
	}

	return &WSDialer{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

// Link - websocket соединение с relay. Пишет под мьютексом, читает одна горутина.
type Link struct {
	conn *websocket.Conn
	mu   sync.Mutex

	room   string
	peerID string

	pingInterval time.Duration
	readTimeout  time.Duration
	onMessage    Handler
	onClose      func(error)

	closed    atomic.Bool
	started   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

func (d *WSDialer) Dial(
	ctx context.Context,
	room, peerID string,
	hello events.AnnounceEvent,
	onMessage Handler,
	onClose func(error),
) (Conn, error) {
	u, err := RoomURL(d.cfg.BaseURL, room, peerID, d.cfg.Token)
	if err != nil {
		return nil, err
	}

	conn, _, err := d.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	conn.SetReadLimit(maxMessage)

	l := &Link{
		conn:         conn,
		room:         room,
		peerID:       peerID,
		pingInterval: d.cfg.PingInterval,
		readTimeout:  d.cfg.ReadTimeout,
		onMessage:    onMessage,
		onClose:      onClose,
		done:         make(chan struct{}),
	}

	announce, err := events.New(events.TypeAnnounce, "", hello)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err = l.Send(announce); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send announce: %w", err)
	}

	return l, nil
}

// RoomURL собирает адрес /ws/{room}/{peer}?token=
func RoomURL(base, room, peerID, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported relay scheme %q", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + url.PathEscape(room) + "/" + url.PathEscape(peerID)

	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

func (l *Link) Start() {
	if !l.started.CompareAndSwap(false, true) {
		return
	}

	go l.readLoop()
	go l.pingLoop()
}

func (l *Link) Send(env events.Envelope) error {
	if l.closed.Load() {
		return ErrClosed
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}

	if err := l.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("write %s: %w", env.Type, err)
	}

	metric.RecordEnvelopeSent(string(env.Type))

	return nil
}

// Close идемпотентен. onClose при явном закрытии не вызывается.
func (l *Link) Close() error {
	_, err := l.shutdown()
	return err
}

// shutdown закрывает соединение ровно один раз, first = true у того, кто закрыл
func (l *Link) shutdown() (first bool, err error) {
	l.closeOnce.Do(func() {
		first = true

		l.closed.Store(true)
		close(l.done)

		_ = l.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)

		err = l.conn.Close()
	})

	return first, err
}

func (l *Link) readLoop() {
	l.extendDeadline()

	l.conn.SetPingHandler(func(data string) error {
		l.extendDeadline()
		return l.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_, raw, err := l.conn.ReadMessage()
		if err != nil {
			l.fail(err)
			return
		}

		l.extendDeadline()

		var env events.Envelope
		if err = json.Unmarshal(raw, &env); err != nil {
			slog.Warn(
				"skip malformed envelope",
				slog.Any(constant.Error, err),
				slog.String(constant.RoomID, l.room),
			)
			continue
		}

		metric.RecordEnvelopeReceived(string(env.Type))

		if l.onMessage != nil {
			l.onMessage(env)
		}
	}
}

func (l *Link) extendDeadline() {
	if l.readTimeout < 0 {
		return
	}

	_ = l.conn.SetReadDeadline(time.Now().Add(l.readTimeout))
}

func (l *Link) pingLoop() {
	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	ping := events.Envelope{Type: events.TypePing}

	for {
		select {
		case <-ticker.C:
			if err := l.Send(ping); err != nil {
				slog.Debug("liveness probe failed", slog.Any(constant.Error, err))
			}
		case <-l.done:
			return
		}
	}
}

// fail - чтение прервалось. Если это не наш Close, отдаём ошибку наверх один раз.
func (l *Link) fail(err error) {
	if first, _ := l.shutdown(); !first {
		return
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		slog.Info(
			"relay closed signaling link",
			slog.Int("code", closeErr.Code),
			slog.String(constant.RoomID, l.room),
		)
	} else {
		slog.Error(
			"signaling read",
			slog.Any(constant.Error, err),
			slog.String(constant.RoomID, l.room),
		)
	}

	if l.onClose != nil {
		l.onClose(fmt.Errorf("%w: %v", ErrClosed, err))
	}
}
