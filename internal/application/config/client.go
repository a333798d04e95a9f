package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/qrave1/TeleVisit/internal/domain"
)

// Ключи viper для televisit join
const (
	KeyRelayURL     = "relay_url"
	KeyToken        = "token"
	KeyRoom         = "room"
	KeyRole         = "role"
	KeyName         = "name"
	KeyPeerID       = "peer_id"
	KeyIntake       = "intake"
	KeyFacing       = "facing"
	KeyPingInterval = "ping_interval"
	KeyReadTimeout  = "read_timeout"
	KeyNotesURL     = "notes_url"
	KeyMetricPort   = "metric_port"
	KeyDebug        = "debug"
)

// ClientConfig - настройки клиента звонка: флаги, затем env TELEVISIT_*, затем файл
type ClientConfig struct {
	RelayURL     string
	Token        string
	Room         string
	Role         domain.Role
	Name         string
	PeerID       string
	Intake       string
	Facing       domain.Facing
	PingInterval time.Duration
	ReadTimeout  time.Duration
	NotesURL     string
	MetricPort   string
	Debug        bool
}

func SetClientDefaults(v *viper.Viper) {
	v.SetDefault(KeyRelayURL, "http://localhost:3000")
	v.SetDefault(KeyRole, string(domain.RolePatient))
	v.SetDefault(KeyFacing, string(domain.FacingUser))
	v.SetDefault(KeyPingInterval, 25*time.Second)
	v.SetDefault(KeyReadTimeout, 60*time.Second)
	v.SetDefault(KeyDebug, false)

	v.SetEnvPrefix("televisit")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

func NewClient(v *viper.Viper) (*ClientConfig, error) {
	role, err := domain.ParseRole(v.GetString(KeyRole))
	if err != nil {
		return nil, fmt.Errorf("parse role: %w", err)
	}

	c := &ClientConfig{
		RelayURL:     strings.TrimSpace(v.GetString(KeyRelayURL)),
		Token:        v.GetString(KeyToken),
		Room:         strings.TrimSpace(v.GetString(KeyRoom)),
		Role:         role,
		Name:         strings.TrimSpace(v.GetString(KeyName)),
		PeerID:       v.GetString(KeyPeerID),
		Intake:       v.GetString(KeyIntake),
		Facing:       domain.Facing(v.GetString(KeyFacing)),
		PingInterval: v.GetDuration(KeyPingInterval),
		ReadTimeout:  v.GetDuration(KeyReadTimeout),
		NotesURL:     v.GetString(KeyNotesURL),
		MetricPort:   v.GetString(KeyMetricPort),
		Debug:        v.GetBool(KeyDebug),
	}

	if c.RelayURL == "" {
		return nil, errors.New("relay url is required")
	}

	if c.Room == "" {
		return nil, errors.New("room is required")
	}

	if c.Name == "" {
		c.Name = string(c.Role)
	}

	if c.Facing != domain.FacingUser && c.Facing != domain.FacingEnvironment {
		return nil, fmt.Errorf("unknown facing %q", c.Facing)
	}

	return c, nil
}
