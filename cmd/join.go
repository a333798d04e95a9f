package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qrave1/TeleVisit/internal/application/config"
	"github.com/qrave1/TeleVisit/internal/application/constant"
	"github.com/qrave1/TeleVisit/internal/application/logger"
	"github.com/qrave1/TeleVisit/internal/application/metric"
	"github.com/qrave1/TeleVisit/internal/domain"
	"github.com/qrave1/TeleVisit/internal/infra/adapters/remote"
	"github.com/qrave1/TeleVisit/internal/media"
	"github.com/qrave1/TeleVisit/internal/peer"
	"github.com/qrave1/TeleVisit/internal/session"
	"github.com/qrave1/TeleVisit/internal/signaling"
)

var (
	cfgFile string
	joinV   = viper.New()
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a visit room as clinician or patient and control the call from the prompt",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return readClientConfig(joinV, cfgFile)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewClient(joinV)
		if err != nil {
			return err
		}

		return runJoin(cmd.Context(), cfg)
	},
}

func init() {
	flags := joinCmd.Flags()

	flags.StringVar(&cfgFile, "config", "", "profile file (default is $HOME/.televisit.yaml)")
	flags.String("relay", "", "relay base url, http(s):// or ws(s)://")
	flags.String("token", "", "relay JWT")
	flags.String("room", "", "visit room id")
	flags.String("role", "", "clinician or patient")
	flags.String("name", "", "display name")
	flags.String("peer-id", "", "peer id in the room (random when empty)")
	flags.String("intake", "", "intake notes sent with the join request")
	flags.String("facing", "", "camera: user or environment")
	flags.Duration("ping-interval", 0, "signaling liveness probe interval")
	flags.Duration("read-timeout", 0, "how long the relay may stay silent, negative disables")
	flags.String("notes-url", "", "notes generation endpoint")
	flags.String("metric-port", "", "serve prometheus metrics on this port")
	flags.Bool("debug", false, "debug logging")

	bind := map[string]string{
		config.KeyRelayURL:     "relay",
		config.KeyToken:        "token",
		config.KeyRoom:         "room",
		config.KeyRole:         "role",
		config.KeyName:         "name",
		config.KeyPeerID:       "peer-id",
		config.KeyIntake:       "intake",
		config.KeyFacing:       "facing",
		config.KeyPingInterval: "ping-interval",
		config.KeyReadTimeout:  "read-timeout",
		config.KeyNotesURL:     "notes-url",
		config.KeyMetricPort:   "metric-port",
		config.KeyDebug:        "debug",
	}

	for key, flag := range bind {
		cobra.CheckErr(joinV.BindPFlag(key, flags.Lookup(flag)))
	}

	config.SetClientDefaults(joinV)

	rootCmd.AddCommand(joinCmd)
}

// readClientConfig читает профиль, если он есть. Отсутствие файла по умолчанию не ошибка.
func readClientConfig(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}

		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".televisit")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}

		return fmt.Errorf("read config: %w", err)
	}

	return nil
}

func runJoin(parent context.Context, cfg *config.ClientConfig) error {
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// stdout занят промптом
	slog.SetDefault(logger.New(os.Stderr, cfg.Debug))

	if cfg.MetricPort != "" {
		metricsSrv := metric.NewServer()

		go func() {
			if err := metricsSrv.Start(":" + cfg.MetricPort); err != nil {
				slog.Debug("metrics server stopped", slog.Any(constant.Error, err))
			}
		}()

		defer func() { _ = metricsSrv.Close() }()
	}

	engines, err := peer.NewPionFactory()
	if err != nil {
		return fmt.Errorf("init webrtc: %w", err)
	}

	var capturer media.Capturer = noDevices{}
	if devices, err := media.NewCapturer(); err != nil {
		slog.Warn("capture devices unavailable", slog.Any(constant.Error, err))
	} else {
		capturer = devices
	}

	sessCfg := session.Config{
		Role:     cfg.Role,
		Name:     cfg.Name,
		Room:     cfg.Room,
		PeerID:   cfg.PeerID,
		Intake:   cfg.Intake,
		Facing:   cfg.Facing,
		Dialer:   signaling.NewDialer(signaling.Config{
			BaseURL:      cfg.RelayURL,
			Token:        cfg.Token,
			PingInterval: cfg.PingInterval,
			ReadTimeout:  cfg.ReadTimeout,
		}),
		Capturer: capturer,
		Engines:  engines,
	}

	if ice, err := remote.NewICEClient(cfg.RelayURL, cfg.Token, nil); err == nil {
		sessCfg.ICE = ice
	} else {
		slog.Warn("ice configuration client", slog.Any(constant.Error, err))
	}

	if files, err := remote.NewFileClient(cfg.RelayURL, cfg.Token, nil); err == nil {
		sessCfg.Files = files
	} else {
		slog.Warn("file storage client", slog.Any(constant.Error, err))
	}

	var notes noteGenerator
	if cfg.NotesURL != "" {
		if n, err := remote.NewNotesClient(cfg.NotesURL, cfg.Token, nil); err == nil {
			notes = n
		} else {
			slog.Warn("notes client", slog.Any(constant.Error, err))
		}
	}

	call := session.New(sessCfg)
	defer call.Close()

	updates, unsubscribe := call.Subscribe()
	defer unsubscribe()

	ended := make(chan session.Snapshot, 1)
	go watchUpdates(updates, ended)

	if err = call.Join(ctx); err != nil {
		return fmt.Errorf("join room %s: %w", cfg.Room, err)
	}

	fmt.Printf("joined room %s as %s (%s), type help\n", cfg.Room, call.PeerID(), cfg.Role)

	lines := make(chan string)
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	r := newREPL(call, notes, os.Stdout)

	for {
		fmt.Print("> ")

		select {
		case <-ctx.Done():
			return nil
		case snap := <-ended:
			fmt.Printf("call ended: %s\n", snap.EndReason)
			return snap.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}

			err := r.exec(ctx, line)
			switch {
			case errors.Is(err, errQuit):
				return nil
			case err != nil:
				fmt.Println("error:", err)
			}
		}
	}
}

// watchUpdates пишет снимки в лог и сообщает о завершении звонка
func watchUpdates(updates <-chan session.Update, ended chan<- session.Snapshot) {
	for u := range updates {
		if u.Notice != nil {
			slog.Info("notice", slog.String("level", string(u.Notice.Level)), slog.String("message", u.Notice.Message))
		}

		slog.Debug("call update", slog.Any("snapshot", u.Snapshot))

		if u.Snapshot.Status == domain.StatusEnded {
			select {
			case ended <- u.Snapshot:
			default:
			}
		}
	}
}

// noDevices - когда захват недоступен, звонок идёт только на приём
type noDevices struct{}

func (noDevices) UserMedia(context.Context, domain.Facing) (*media.Stream, error) {
	return nil, media.ErrNoDevice
}

func (noDevices) DisplayMedia(context.Context) (media.Track, error) {
	return nil, media.ErrNoDevice
}
