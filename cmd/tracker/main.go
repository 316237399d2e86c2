package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/pwhittaker/playpulse/internal/config"
	"github.com/pwhittaker/playpulse/internal/database"
	"github.com/pwhittaker/playpulse/internal/logging"
	"github.com/pwhittaker/playpulse/internal/notify"
	"github.com/pwhittaker/playpulse/internal/poller"
	"github.com/pwhittaker/playpulse/internal/queue"
	"github.com/pwhittaker/playpulse/internal/sessions"
	"github.com/pwhittaker/playpulse/internal/source"
	"github.com/pwhittaker/playpulse/internal/tracing"
	"github.com/pwhittaker/playpulse/pkg/models"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize tracing
	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer("playpulse-tracker", cfg.Tracing.JaegerEndpoint)
		if err != nil {
			logger.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer closer.Close()
	}

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	events := database.NewEventRepository(db)
	sessionRepo := database.NewSessionRepository(db)

	// Failure state backend
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stateStore, err := buildStateStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize state store: %v", err)
	}

	mailer := buildMailer(cfg, logger)
	notifier := notify.NewNotifier(stateStore, mailer, cfg.Notify.FailureThreshold, cfg.Notify.Cooldown, logger)

	// Optional accepted-event publisher
	var publisher poller.EventPublisher
	if cfg.Queue.Enabled {
		url := amqpURL(cfg.Queue)
		pub, err := queue.NewPublisher(url, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to queue: %v", err)
		}
		defer pub.Close()
		publisher = pub
	}

	registry := source.NewRegistry(source.NewHTTPProvider(bridgeSources(cfg.Sources)))

	p := poller.NewPoller(registry, events, notifier, publisher,
		cfg.Poller.Interval, cfg.Poller.SourceTimeout, logger)

	reconstructor := sessions.NewReconstructor(cfg.Sessions.GapThreshold, cfg.Sessions.MinWatchTime)
	rebuildService := sessions.NewService(reconstructor, events, sessionRepo, cfg.Sessions.RebuildInterval, logger)

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down tracker gracefully...")
		cancel()
	}()

	logger.Infof("Tracker started, polling %d sources every %s", len(cfg.Sources), cfg.Poller.Interval)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		rebuildService.Run(ctx)
	}()
	wg.Wait()

	// One last rebuild so sessions reflect everything appended this run.
	if err := rebuildService.Rebuild(context.Background()); err != nil {
		logger.ErrorWithErr("Final session rebuild failed", err)
		notifier.NotifyProcessError("tracker", err)
	}

	logger.Info("Tracker stopped")
}

func buildStateStore(ctx context.Context, cfg *config.Config) (notify.StateStore, error) {
	if cfg.Notify.StateBackend == "redis" {
		addr := cfg.Redis.Host + ":" + strconv.Itoa(cfg.Redis.Port)
		return notify.NewRedisStateStore(ctx, addr, cfg.Redis.Password, cfg.Redis.DB)
	}
	return notify.NewFileStateStore(cfg.Notify.StateFile), nil
}

func buildMailer(cfg *config.Config, logger *logging.Logger) *notify.SMTPMailer {
	var to []string
	for _, addr := range strings.Split(cfg.Notify.SMTP.To, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	return notify.NewSMTPMailer(
		cfg.Notify.SMTP.Host, cfg.Notify.SMTP.Port,
		cfg.Notify.SMTP.From, cfg.Notify.SMTP.Password,
		cfg.Notify.SMTP.From, to, logger,
	)
}

func bridgeSources(configs []config.SourceConfig) []source.BridgeSource {
	sources := make([]source.BridgeSource, 0, len(configs))
	for _, c := range configs {
		s := source.BridgeSource{
			Kind:        models.SourceKind(c.Kind),
			DeviceName:  c.DeviceName,
			DeviceModel: c.DeviceModel,
			URL:         c.URL,
		}
		if c.UserName != "" {
			user := c.UserName
			s.UserName = &user
		}
		sources = append(sources, s)
	}
	return sources
}

func amqpURL(cfg config.QueueConfig) string {
	return "amqp://" + cfg.User + ":" + cfg.Password + "@" + cfg.Host + ":" + strconv.Itoa(cfg.Port) + cfg.Vhost
}
