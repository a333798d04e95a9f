package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pion/webrtc/v4"
)

// DefaultSTUN публичный STUN, используется когда relay не отдал список ICE серверов
const DefaultSTUN = "stun:stun.l.google.com:19302"

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Debug      bool   `env:"DEBUG" envDefault:"false"`
	Port       string `env:"PORT" envDefault:"3000"`
	MetricPort string `env:"METRIC_PORT" envDefault:"9090"`
	Domain     string `env:"DOMAIN" envDefault:"http://localhost:3000"`
	JWTSecret  string `env:"JWT_SECRET,required,notEmpty"`

	// Storage - где relay хранит пользователей и аудит: memory или postgres
	Storage string `env:"STORAGE" envDefault:"memory"`

	STUNServer    webrtc.ICEServer
	TurnUDPServer webrtc.ICEServer
	TurnTCPServer webrtc.ICEServer

	CoturnServer CoturnConfig
	Files        FilesConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
}

type PostgresConfig struct {
	URL string `env:"POSTGRES_URL"`

	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Name     string `env:"POSTGRES_NAME" envDefault:"televisit"`
	SSL      string `env:"POSTGRES_SSL" envDefault:"disable"`
}

func (p *PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}

	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Name,
		p.SSL,
	)
}

// RedisConfig - если URL пустой, присутствие в комнатах хранится в памяти
type RedisConfig struct {
	URL string        `env:"REDIS_URL"`
	TTL time.Duration `env:"REDIS_PRESENCE_TTL" envDefault:"24h"`
}

type CoturnConfig struct {
	Host     string `env:"COTURN_HOST"`
	Username string `env:"COTURN_USERNAME"`
	Password string `env:"COTURN_PASSWORD"`

	// Secret - нужен для генерации временных кредов для клиентов
	Secret string `env:"COTURN_SECRET"`
}

// Enabled - TURN отдаётся клиентам только если задан хост и секрет
func (c CoturnConfig) Enabled() bool {
	return c.Host != "" && c.Secret != ""
}

type FilesConfig struct {
	Dir     string        `env:"FILE_DIR" envDefault:"./data/files"`
	Secret  string        `env:"FILE_SECRET,required,notEmpty"`
	TTL     time.Duration `env:"FILE_URL_TTL" envDefault:"1h"`
	MaxSize int64         `env:"FILE_MAX_SIZE" envDefault:"26214400"`
}

func New() (*Config, error) {
	c, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	c.STUNServer = webrtc.ICEServer{
		URLs: []string{DefaultSTUN},
	}

	if c.CoturnServer.Enabled() {
		c.TurnUDPServer = webrtc.ICEServer{
			URLs:       []string{fmt.Sprintf("turn:%s?transport=udp", c.CoturnServer.Host)},
			Username:   c.CoturnServer.Username,
			Credential: c.CoturnServer.Password,
		}

		c.TurnTCPServer = webrtc.ICEServer{
			URLs:       []string{fmt.Sprintf("turn:%s?transport=tcp", c.CoturnServer.Host)},
			Username:   c.CoturnServer.Username,
			Credential: c.CoturnServer.Password,
		}
	}

	if c.Storage != StorageMemory && c.Storage != StoragePostgres {
		return nil, fmt.Errorf("unknown storage %q", c.Storage)
	}

	return &c, nil
}
