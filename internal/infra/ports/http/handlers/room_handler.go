package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/TeleVisit/internal/application/constant"
	"github.com/qrave1/TeleVisit/internal/infra/ports/http/dto"
	"github.com/qrave1/TeleVisit/internal/usecase"
)

type RoomHandler struct {
	relayUsecase usecase.RelayUsecase
}

func NewRoomHandler(relayUsecase usecase.RelayUsecase) *RoomHandler {
	return &RoomHandler{relayUsecase: relayUsecase}
}

func (h *RoomHandler) Peers(c echo.Context) error {
	room := c.Param("room")

	peers, err := h.relayUsecase.Peers(c.Request().Context(), room)
	if err != nil {
		slog.Error("list room peers", slog.Any(constant.Error, err), slog.String(constant.RoomID, room))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not list peers"})
	}

	return c.JSON(http.StatusOK, dto.RoomPeersResponse{Room: room, Peers: peers})
}
