package factory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"login-service/internal/client"
	"login-service/internal/clock"
	"login-service/internal/config"
	"login-service/internal/events"
	"login-service/internal/handler"
	"login-service/internal/hashing"
	"login-service/internal/notify"
	"login-service/internal/otp"
	"login-service/internal/service"
	"login-service/internal/store"
	"login-service/internal/util"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

const initTimeout = 10 * time.Second

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config *config.Config

	redisClient *client.RedisClient
	publisher   events.Publisher

	hasher      *hashing.Hasher
	credStore   *store.CredentialStore
	otpManager  *otp.Manager
	authService *service.AuthService
	router      chi.Router

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)
	logger := util.Get()

	f := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if err := f.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	clk := clock.New()
	f.hasher = hashing.NewHasher(hashing.Argon2Params{})
	f.credStore = store.NewCredentialStore(f.hasher, clk, logger)

	if cfg.Seed.Enabled {
		if err := f.seedAccount(); err != nil {
			return nil, fmt.Errorf("failed to seed account: %w", err)
		}
	}

	var challenges otp.ChallengeStore = otp.NewMemoryChallengeStore()
	if f.redisClient != nil {
		challenges = otp.NewRedisChallengeStore(f.redisClient)
	}

	f.otpManager = otp.NewManager(challenges, notify.NewLogNotifier(logger), clk, otp.Options{
		CodeLength:    cfg.OTP.CodeLength,
		ExpiryMinutes: cfg.OTP.ExpiryMinutes,
		Alphanumeric:  cfg.OTP.Alphanumeric,
		LockStripes:   cfg.OTP.LockStripes,
	}, logger)

	f.authService = service.NewAuthService(f.credStore, f.otpManager, f.publisher, logger)
	f.router = handler.NewRouter(handler.NewAuthHandler(f.authService, logger), logger)

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.String("otp_store", cfg.OTP.Store),
		util.Bool("kafka_enabled", cfg.Kafka.Enabled),
	)

	return f, nil
}

// initializeClients brings up the optional external services. Redis is
// required only when it backs the challenge store; Kafka is always
// best-effort.
func (f *Factory) initializeClients() error {
	if f.config.OTP.Store == "redis" {
		redisClient, err := client.NewRedisClient(f.config, util.Get())
		if err != nil {
			if f.config.IsProduction() {
				return fmt.Errorf("redis: %w", err)
			}
			util.Warn("Redis unavailable - falling back to in-memory challenge store", util.ErrorField(err))
		} else {
			f.redisClient = redisClient
		}
	}

	f.publisher = events.NopPublisher{}
	if f.config.Kafka.Enabled {
		publisher := events.NewKafkaPublisher(f.config, util.Get())
		ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
		err := publisher.HealthCheck(ctx)
		cancel()
		if err != nil {
			util.Warn("Kafka unreachable - proceeding without security event publishing", util.ErrorField(err))
			_ = publisher.Close()
		} else {
			f.publisher = publisher
			util.Info("Kafka security event publisher initialized and healthy")
		}
	}

	return nil
}

// seedAccount provisions the configured demo account. An already-taken
// username means a previous run seeded it, which is fine.
func (f *Factory) seedAccount() error {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	_, err := f.credStore.Register(ctx, store.RegisterInput{
		Username: f.config.Seed.Username,
		Email:    f.config.Seed.Email,
		Password: f.config.Seed.Password,
	})
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) || errors.Is(err, store.ErrEmailTaken) {
			return nil
		}
		return err
	}

	util.Info("Seed account provisioned", util.String("username", f.config.Seed.Username))
	return nil
}

// HealthCheck probes the external dependencies concurrently and returns a
// per-service error map.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	var mu sync.Mutex
	healthErrors := make(map[string]error)
	record := func(name string, err error) {
		mu.Lock()
		healthErrors[name] = err
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)

	if f.redisClient != nil {
		g.Go(func() error {
			if err := f.redisClient.HealthCheck(gctx); err != nil {
				record("redis", err)
			}
			return nil
		})
	}
	if publisher, ok := f.publisher.(*events.KafkaPublisher); ok {
		g.Go(func() error {
			if err := publisher.HealthCheck(gctx); err != nil {
				record("kafka", err)
			}
			return nil
		})
	}

	_ = g.Wait()

	if f.credStore == nil {
		healthErrors["store"] = fmt.Errorf("credential store not initialized")
	}
	if f.otpManager == nil {
		healthErrors["otp"] = fmt.Errorf("otp manager not initialized")
	}

	return healthErrors
}

// IsHealthy treats Kafka as optional, matching its best-effort role.
func (f *Factory) IsHealthy(ctx context.Context) bool {
	healthErrors := f.HealthCheck(ctx)
	delete(healthErrors, "kafka")
	return len(healthErrors) == 0
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		if f.publisher != nil {
			if err := f.publisher.Close(); err != nil {
				util.Error("Failed to close event publisher", util.ErrorField(err))
			} else {
				util.Info("Event publisher closed")
			}
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})

	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) AuthService() *service.AuthService {
	return f.authService
}

func (f *Factory) Router() chi.Router {
	return f.router
}
