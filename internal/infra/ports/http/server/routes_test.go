package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/TeleVisit/internal/application/config"
	"github.com/qrave1/TeleVisit/internal/domain"
	"github.com/qrave1/TeleVisit/internal/domain/events"
	"github.com/qrave1/TeleVisit/internal/infra/adapters/memory"
	"github.com/qrave1/TeleVisit/internal/infra/adapters/remote"
	"github.com/qrave1/TeleVisit/internal/infra/adapters/storage"
	"github.com/qrave1/TeleVisit/internal/infra/ports/http/dto"
	"github.com/qrave1/TeleVisit/internal/infra/ports/http/handlers"
	"github.com/qrave1/TeleVisit/internal/infra/ports/http/server"
	"github.com/qrave1/TeleVisit/internal/signaling"
	"github.com/qrave1/TeleVisit/internal/usecase"
)

func newRelay(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		Debug:      true,
		Domain:     "http://localhost",
		JWTSecret:  "jwt-secret",
		STUNServer: webrtc.ICEServer{URLs: []string{config.DefaultSTUN}},
		CoturnServer: config.CoturnConfig{
			Host:   "turn.example.org:3478",
			Secret: "coturn",
		},
		TurnUDPServer: webrtc.ICEServer{URLs: []string{"turn:turn.example.org:3478?transport=udp"}},
		TurnTCPServer: webrtc.ICEServer{URLs: []string{"turn:turn.example.org:3478?transport=tcp"}},
		Files: config.FilesConfig{
			Dir:     t.TempDir(),
			Secret:  "file-secret",
			TTL:     time.Hour,
			MaxSize: 1 << 20,
		},
	}

	store, err := storage.NewLocalStore(cfg.Files.Dir, cfg.Files.MaxSize)
	require.NoError(t, err)

	userUsecase := usecase.NewUserUsecase([]byte(cfg.JWTSecret), memory.NewUserRepository())
	relayUsecase := usecase.NewRelayUsecase(memory.NewRoomConnectionRepository(), memory.NewPresenceRepository())
	fileUsecase := usecase.NewFileUsecase(store, storage.NewSigner(cfg.Files.Secret, cfg.Files.TTL), memory.NewAuditRepository())

	e := server.New(
		userUsecase,
		handlers.NewAuthHandler(cfg, userUsecase),
		handlers.NewIceHandler(cfg),
		handlers.NewWebSocketHandler(cfg, relayUsecase),
		handlers.NewFileHandler(cfg, fileUsecase),
		handlers.NewRoomHandler(relayUsecase),
	)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)

	return resp
}

func registerAndLogin(t *testing.T, base, username string, role domain.Role) string {
	t.Helper()

	resp := postJSON(t, base+"/api/auth/register", dto.RegisterRequest{Username: username, Password: "pw", Role: role})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, base+"/api/auth/login", dto.LoginRequest{Username: username, Password: "pw"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login dto.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	require.NotEmpty(t, login.Token)

	return login.Token
}

func TestAuthFlow(t *testing.T) {
	srv := newRelay(t)

	resp := postJSON(t, srv.URL+"/api/auth/register", dto.RegisterRequest{Username: "x", Password: "pw", Role: "admin"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	token := registerAndLogin(t, srv.URL, "house", domain.RoleClinician)

	resp = postJSON(t, srv.URL+"/api/auth/register", dto.RegisterRequest{Username: "house", Password: "pw", Role: domain.RolePatient})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/auth/login", dto.LoginRequest{Username: "house", Password: "nope"})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err := http.Get(srv.URL + "/api/v1/me")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var me dto.GetMeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, "house", me.Username)
	assert.Equal(t, domain.RoleClinician, me.Role)
	assert.Equal(t, "house", me.DisplayName)
}

func TestICEServersWithTURN(t *testing.T) {
	srv := newRelay(t)
	token := registerAndLogin(t, srv.URL, "doc", domain.RoleClinician)

	client, err := remote.NewICEClient(srv.URL, token, nil)
	require.NoError(t, err)

	servers, err := client.ICEServers(context.Background())
	require.NoError(t, err)
	require.Len(t, servers, 2)

	assert.Equal(t, []string{config.DefaultSTUN}, servers[0].URLs)
	assert.Len(t, servers[1].URLs, 2)
	assert.NotEmpty(t, servers[1].Username)
	assert.NotEmpty(t, servers[1].Credential)
}

func TestFileUploadAndSignedDownload(t *testing.T) {
	srv := newRelay(t)
	token := registerAndLogin(t, srv.URL, "doc", domain.RoleClinician)

	files, err := remote.NewFileClient(srv.URL, token, nil)
	require.NoError(t, err)

	link, err := files.Upload(context.Background(), "/tmp/discharge.txt", strings.NewReader("rest and fluids"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link, srv.URL+"/files/"), link)

	resp, err := http.Get(link)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "rest and fluids", string(body))

	resp, err = http.Get(strings.Replace(link, "sig=", "sig=00", 1))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

type inbox chan events.Envelope

func (in inbox) next(t *testing.T, want events.MessageType) events.Envelope {
	t.Helper()

	deadline := time.After(5 * time.Second)

	for {
		select {
		case env := <-in:
			if env.Type == want {
				return env
			}
		case <-deadline:
			t.Fatalf("no %s envelope received", want)
			return events.Envelope{}
		}
	}
}

func dial(t *testing.T, base, token, peerID string, role domain.Role) (signaling.Conn, inbox) {
	t.Helper()

	in := make(inbox, 32)
	d := signaling.NewDialer(signaling.Config{BaseURL: base, Token: token})

	conn, err := d.Dial(
		context.Background(),
		"room-1",
		peerID,
		events.AnnounceEvent{Role: role, Name: peerID},
		func(env events.Envelope) { in <- env },
		nil,
	)
	require.NoError(t, err)

	conn.Start()
	t.Cleanup(func() { _ = conn.Close() })

	return conn, in
}

func roomPeers(t *testing.T, base, token string) []string {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, base+"/api/v1/rooms/room-1/peers", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out dto.RoomPeersResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out.Peers
}

func TestRelayForwardsWithinRoom(t *testing.T) {
	srv := newRelay(t)
	docToken := registerAndLogin(t, srv.URL, "doc", domain.RoleClinician)
	patToken := registerAndLogin(t, srv.URL, "pat", domain.RolePatient)

	doc, docIn := dial(t, srv.URL, docToken, "doc-1", domain.RoleClinician)

	require.Eventually(t, func() bool {
		return len(roomPeers(t, srv.URL, docToken)) == 1
	}, 5*time.Second, 20*time.Millisecond)

	pat, patIn := dial(t, srv.URL, patToken, "pat-1", domain.RolePatient)

	joined := docIn.next(t, events.TypePeerJoined)
	assert.Equal(t, "pat-1", joined.Peer)

	announce := docIn.next(t, events.TypeAnnounce)
	assert.Equal(t, "pat-1", announce.From)

	req, err := events.New(events.TypeJoinRequest, "", events.JoinRequestEvent{Name: "Pat", Intake: "cough"})
	require.NoError(t, err)
	require.NoError(t, pat.Send(req))

	got := docIn.next(t, events.TypeJoinRequest)
	assert.Equal(t, "pat-1", got.From)

	var jr events.JoinRequestEvent
	require.NoError(t, got.Decode(&jr))
	assert.Equal(t, "cough", jr.Intake)

	granted, err := events.New(events.TypeConnectionGranted, "pat-1", nil)
	require.NoError(t, err)
	require.NoError(t, doc.Send(granted))
	assert.Equal(t, "doc-1", patIn.next(t, events.TypeConnectionGranted).From)

	ghost, err := events.New(events.TypeOffer, "ghost", nil)
	require.NoError(t, err)
	require.NoError(t, doc.Send(ghost))
	docIn.next(t, events.TypeError)

	require.NoError(t, pat.Close())
	left := docIn.next(t, events.TypePeerLeft)
	assert.Equal(t, "pat-1", left.Peer)

	assert.Eventually(t, func() bool {
		peers := roomPeers(t, srv.URL, docToken)
		return len(peers) == 1 && peers[0] == "doc-1"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRelayRejectsWithoutToken(t *testing.T) {
	srv := newRelay(t)

	d := signaling.NewDialer(signaling.Config{BaseURL: srv.URL})
	_, err := d.Dial(context.Background(), "room-1", "x", events.AnnounceEvent{}, nil, nil)
	assert.Error(t, err)
}
