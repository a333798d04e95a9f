package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/TeleVisit/internal/domain"
)

func TestNewFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("FILE_SECRET", "files")
	t.Setenv("COTURN_HOST", "turn.example.org:3478")
	t.Setenv("COTURN_SECRET", "s")
	t.Setenv("POSTGRES_HOST", "db")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, time.Hour, cfg.Files.TTL)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, []string{DefaultSTUN}, cfg.STUNServer.URLs)
	assert.Equal(t, []string{"turn:turn.example.org:3478?transport=udp"}, cfg.TurnUDPServer.URLs)
	assert.Equal(t, []string{"turn:turn.example.org:3478?transport=tcp"}, cfg.TurnTCPServer.URLs)
	assert.Equal(t, "postgresql://postgres:postgres@db:5432/televisit?sslmode=disable", cfg.Postgres.DSN())
}

func TestNewRequiresSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("FILE_SECRET", "")

	_, err := New()
	assert.Error(t, err)
}

func TestNewUnknownStorage(t *testing.T) {
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("FILE_SECRET", "files")
	t.Setenv("STORAGE", "sqlite")

	_, err := New()
	assert.Error(t, err)
}

func TestNewClient(t *testing.T) {
	v := viper.New()
	SetClientDefaults(v)

	v.Set(KeyRoom, " visit-42 ")
	v.Set(KeyRole, "clinician")

	cfg, err := NewClient(v)
	require.NoError(t, err)

	assert.Equal(t, "visit-42", cfg.Room)
	assert.Equal(t, domain.RoleClinician, cfg.Role)
	assert.Equal(t, "clinician", cfg.Name)
	assert.Equal(t, domain.FacingUser, cfg.Facing)
	assert.Equal(t, 25*time.Second, cfg.PingInterval)
	assert.Equal(t, 60*time.Second, cfg.ReadTimeout)
	assert.Equal(t, "http://localhost:3000", cfg.RelayURL)
}

func TestNewClientFromEnv(t *testing.T) {
	t.Setenv("TELEVISIT_ROOM", "r1")
	t.Setenv("TELEVISIT_NAME", "Pat")

	v := viper.New()
	SetClientDefaults(v)

	cfg, err := NewClient(v)
	require.NoError(t, err)
	assert.Equal(t, "r1", cfg.Room)
	assert.Equal(t, "Pat", cfg.Name)
	assert.Equal(t, domain.RolePatient, cfg.Role)
}

func TestNewClientErrors(t *testing.T) {
	for name, set := range map[string]func(v *viper.Viper){
		"no room":    func(v *viper.Viper) {},
		"bad role":   func(v *viper.Viper) { v.Set(KeyRoom, "r"); v.Set(KeyRole, "nurse") },
		"bad facing": func(v *viper.Viper) { v.Set(KeyRoom, "r"); v.Set(KeyFacing, "back") },
	} {
		t.Run(name, func(t *testing.T) {
			v := viper.New()
			SetClientDefaults(v)
			set(v)

			_, err := NewClient(v)
			assert.Error(t, err)
		})
	}
}
