package handlers

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pion/webrtc/v4"

	"github.com/qrave1/TeleVisit/internal/application/config"
	"github.com/qrave1/TeleVisit/internal/infra/ports/http/dto"
)

const turnCredentialTTL = time.Hour

type IceHandler struct {
	cfg *config.Config
	now func() time.Time
}

func NewIceHandler(cfg *config.Config) *IceHandler {
	return &IceHandler{cfg: cfg, now: time.Now}
}

// IceServers отдаёт STUN и, если настроен coturn, TURN с временными кредами (static-auth-secret)
func (h *IceHandler) IceServers(c echo.Context) error {
	servers := []webrtc.ICEServer{h.cfg.STUNServer}

	if h.cfg.CoturnServer.Enabled() {
		username := strconv.FormatInt(h.now().Add(turnCredentialTTL).Unix(), 10)

		// HMAC-SHA1 с использованием static-auth-secret
		mac := hmac.New(sha1.New, []byte(h.cfg.CoturnServer.Secret))
		mac.Write([]byte(username))
		password := base64.StdEncoding.EncodeToString(mac.Sum(nil))

		servers = append(servers, webrtc.ICEServer{
			URLs: []string{
				h.cfg.TurnUDPServer.URLs[0],
				h.cfg.TurnTCPServer.URLs[0],
			},
			Username:   username,
			Credential: password,
		})
	}

	return c.JSON(http.StatusOK, dto.IceServersResponse{ICEServers: servers})
}
