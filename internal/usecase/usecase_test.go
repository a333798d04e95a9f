package usecase

import (
	"context"
	"io"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/TeleVisit/internal/domain"
	"github.com/qrave1/TeleVisit/internal/domain/events"
	"github.com/qrave1/TeleVisit/internal/domain/repository"
	"github.com/qrave1/TeleVisit/internal/infra/adapters/memory"
	"github.com/qrave1/TeleVisit/internal/infra/adapters/storage"
)

type recorder struct {
	mu   sync.Mutex
	envs []events.Envelope
}

func (r *recorder) Send(env events.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
	return nil
}

func (r *recorder) got() []events.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Envelope(nil), r.envs...)
}

func TestUserRegisterLoginToken(t *testing.T) {
	ctx := context.Background()
	uc := NewUserUsecase([]byte("secret"), memory.NewUserRepository())

	user, err := uc.CreateUser(ctx, " dr.house ", "pa55", domain.RoleClinician, "Dr. House")
	require.NoError(t, err)
	assert.Empty(t, user.Password)
	assert.Equal(t, "dr.house", user.Username)

	_, err = uc.CreateUser(ctx, "dr.house", "x", domain.RoleClinician, "")
	assert.ErrorIs(t, err, repository.ErrAlreadyExists)

	_, err = uc.CreateUser(ctx, "nurse", "x", domain.Role("admin"), "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = uc.ValidateCredentials(ctx, "dr.house", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = uc.ValidateCredentials(ctx, "nobody", "pa55")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	logged, err := uc.ValidateCredentials(ctx, "dr.house", "pa55")
	require.NoError(t, err)

	token, err := uc.GenerateJWT(logged)
	require.NoError(t, err)

	claims, err := uc.ParseJWT(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, domain.RoleClinician, claims.Role)
	assert.Equal(t, "Dr. House", claims.Name)
}

func TestParseJWTRejects(t *testing.T) {
	uc := NewUserUsecase([]byte("secret"), memory.NewUserRepository()).(*userUsecase)

	_, err := uc.ParseJWT("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewUserUsecase([]byte("other"), memory.NewUserRepository())
	u, err := other.CreateUser(context.Background(), "p", "p", domain.RolePatient, "")
	require.NoError(t, err)
	foreign, err := other.GenerateJWT(u)
	require.NoError(t, err)

	_, err = uc.ParseJWT(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, err := uc.GenerateJWT(u)
	require.NoError(t, err)

	uc.now = func() time.Time { return time.Now().Add(tokenTTL + time.Hour) }
	_, err = uc.ParseJWT(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	uc.now = time.Now
	bad := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Role:             domain.RolePatient,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "not-a-uuid"},
	})
	raw, err := bad.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = uc.ParseJWT(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRelayJoinForwardLeave(t *testing.T) {
	ctx := context.Background()
	relay := NewRelayUsecase(memory.NewRoomConnectionRepository(), memory.NewPresenceRepository())

	doc, pat, other := &recorder{}, &recorder{}, &recorder{}

	require.NoError(t, relay.Join(ctx, "room", "doc", doc))
	require.NoError(t, relay.Join(ctx, "room", "pat", pat))
	require.NoError(t, relay.Join(ctx, "elsewhere", "x", other))
	assert.ErrorIs(t, relay.Join(ctx, "room", "pat", &recorder{}), ErrPeerTaken)

	peers, err := relay.Peers(ctx, "room")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc", "pat"}, peers)

	require.Len(t, doc.got(), 1)
	assert.Equal(t, events.Envelope{Type: events.TypePeerJoined, Peer: "pat"}, doc.got()[0])

	// from подделать нельзя, payload не меняется
	chat, err := events.New(events.TypeChat, "", events.ChatEvent{Sender: "Pat", Text: "hi"})
	require.NoError(t, err)
	chat.From = "spoofed"
	relay.Forward(ctx, "room", "pat", chat)

	got := doc.got()
	require.Len(t, got, 2)
	assert.Equal(t, "pat", got[1].From)
	assert.JSONEq(t, string(chat.Payload), string(got[1].Payload))
	assert.Empty(t, other.got())

	granted, err := events.New(events.TypeConnectionGranted, "pat", nil)
	require.NoError(t, err)
	relay.Forward(ctx, "room", "doc", granted)
	require.Len(t, pat.got(), 1)
	assert.Equal(t, events.TypeConnectionGranted, pat.got()[0].Type)
	assert.Equal(t, "doc", pat.got()[0].From)

	// ping пересылается как любой другой конверт
	relay.Forward(ctx, "room", "doc", events.Envelope{Type: events.TypePing})
	require.Len(t, pat.got(), 2)
	assert.Equal(t, events.Envelope{Type: events.TypePing, From: "doc"}, pat.got()[1])

	relay.Leave(ctx, "room", "pat", pat)
	got = doc.got()
	assert.Equal(t, events.Envelope{Type: events.TypePeerLeft, Peer: "pat"}, got[len(got)-1])

	peers, err = relay.Peers(ctx, "room")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc"}, peers)
}

func TestRelayErrors(t *testing.T) {
	ctx := context.Background()
	relay := NewRelayUsecase(memory.NewRoomConnectionRepository(), memory.NewPresenceRepository())

	doc := &recorder{}
	require.NoError(t, relay.Join(ctx, "room", "doc", doc))

	relay.Forward(ctx, "room", "doc", events.Envelope{Type: events.TypeOffer, To: "ghost"})
	relay.Forward(ctx, "room", "doc", events.Envelope{Type: events.TypePeerLeft, Peer: "x"})

	got := doc.got()
	require.Len(t, got, 2)

	for _, env := range got {
		assert.Equal(t, events.TypeError, env.Type)

		var e events.ErrorEvent
		require.NoError(t, env.Decode(&e))
		assert.NotEmpty(t, e.Message)
		assert.Equal(t, e.Message, env.Message)
	}

	// повторный выход и выход чужого соединения ничего не рассылают
	stale := &recorder{}
	relay.Leave(ctx, "room", "doc", stale)
	peers, err := relay.Peers(ctx, "room")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc"}, peers)
}

func TestFileUploadAndOpen(t *testing.T) {
	ctx := context.Background()

	store, err := storage.NewLocalStore(t.TempDir(), 0)
	require.NoError(t, err)

	audit := memory.NewAuditRepository()
	uc := NewFileUsecase(store, storage.NewSigner("s", time.Hour), audit)
	user := uuid.New()

	file, err := uc.Upload(ctx, user, "10.0.0.1", "xray.png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, "xray.png", file.Name)
	assert.True(t, file.ExpiresAt.After(time.Now()))

	entries, err := audit.ListByUser(ctx, user, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "SHARE_FILE", entries[0].Action)
	assert.Equal(t, "10.0.0.1", entries[0].IP)

	u, err := url.Parse(file.URL)
	require.NoError(t, err)
	object := strings.TrimPrefix(u.Path, "/files/")
	assert.Equal(t, entries[0].Object, object)

	f, err := uc.Open(ctx, object, u.Query().Get("expires"), u.Query().Get("sig"))
	require.NoError(t, err)
	defer f.Close()

	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "png", string(body))

	_, err = uc.Open(ctx, object, u.Query().Get("expires"), "00")
	assert.ErrorIs(t, err, storage.ErrBadSignature)
}
