package remote

import (
	"context"
	"errors"
	"net/http"

	"github.com/pion/webrtc/v4"

	"github.com/qrave1/TeleVisit/internal/infra/ports/http/dto"
)

// ICEClient получает STUN/TURN серверы с временными учётными данными
type ICEClient struct {
	c *client
}

func NewICEClient(baseURL, token string, hc *http.Client) (*ICEClient, error) {
	c, err := newClient(baseURL, token, hc)
	if err != nil {
		return nil, err
	}

	return &ICEClient{c: c}, nil
}

func (i *ICEClient) ICEServers(ctx context.Context) ([]webrtc.ICEServer, error) {
	req, err := i.c.newRequest(ctx, http.MethodGet, "/api/v1/ice", nil)
	if err != nil {
		return nil, err
	}

	var resp dto.IceServersResponse
	if err = i.c.do(req, &resp); err != nil {
		return nil, err
	}

	if len(resp.ICEServers) == 0 {
		return nil, errors.New("relay returned no ice servers")
	}

	return resp.ICEServers, nil
}
