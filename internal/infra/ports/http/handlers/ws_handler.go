package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/qrave1/TeleVisit/internal/application/config"
	"github.com/qrave1/TeleVisit/internal/application/constant"
	"github.com/qrave1/TeleVisit/internal/domain/events"
	"github.com/qrave1/TeleVisit/internal/infra/appctx"
	"github.com/qrave1/TeleVisit/internal/usecase"
)

const (
	readDeadline = 60 * time.Second
	pingPeriod   = 30 * time.Second
	writeWait    = 10 * time.Second
	maxMessage   = 1 << 20
)

type WebSocketHandler struct {
	upgrader *websocket.Upgrader

	relayUsecase usecase.RelayUsecase
}

func NewWebSocketHandler(cfg *config.Config, relayUsecase usecase.RelayUsecase) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")

				// нативные клиенты Origin не присылают
				if cfg.Debug || origin == "" {
					return true
				}

				return origin == cfg.Domain
			},
		},
		relayUsecase: relayUsecase,
	}
}

// safeWS - gorilla не допускает конкурентную запись
type safeWS struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *safeWS) Send(env events.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))

	return s.conn.WriteJSON(env)
}

func (s *safeWS) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Handle - GET /ws/:room/:peer, один сокет на участника комнаты
func (h *WebSocketHandler) Handle(c echo.Context) error {
	room, peerID := c.Param("room"), c.Param("peer")
	if room == "" || peerID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "room and peer are required"})
	}

	userID, _ := appctx.UserID(c.Request().Context())
	role, _ := appctx.Role(c.Request().Context())

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error("WebSocket upgrade error", slog.Any(constant.Error, err))
		return nil
	}
	defer ws.Close()

	ws.SetReadLimit(maxMessage)

	conn := &safeWS{conn: ws}
	ctx := c.Request().Context()
	log := slog.With(
		slog.String(constant.RoomID, room),
		slog.String(constant.PeerID, peerID),
		slog.Any(constant.UserID, userID),
		slog.String(constant.Role, string(role)),
	)

	if err = h.relayUsecase.Join(ctx, room, peerID, conn); err != nil {
		log.Warn("reject websocket join", slog.Any(constant.Error, err))

		_ = ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "peer id already connected"),
			time.Now().Add(writeWait),
		)

		return nil
	}
	defer h.relayUsecase.Leave(ctx, room, peerID, conn)

	if err = ws.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		return nil
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readDeadline))
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := conn.ping(); err != nil {
					log.Warn("ping failed", slog.Any(constant.Error, err))
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			handleWebsocketError(log, err)
			return nil
		}

		// любое сообщение продлевает дедлайн так же, как pong
		_ = ws.SetReadDeadline(time.Now().Add(readDeadline))

		var env events.Envelope
		if err = json.Unmarshal(msg, &env); err != nil || env.Type == "" {
			log.Warn("skip malformed envelope", slog.Any(constant.Error, err))
			continue
		}

		h.relayUsecase.Forward(ctx, room, peerID, env)
	}
}

func handleWebsocketError(log *slog.Logger, err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			log.Info("peer disconnected from websocket")
		default:
			log.Warn("websocket closed", slog.Int("code", closeErr.Code))
		}
		return
	}

	log.Warn("websocket read", slog.Any(constant.Error, err))
}
