package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/voter-auth-api/internal/application/auth"
	"github.com/jhoicas/voter-auth-api/internal/application/bootstrap"
	"github.com/jhoicas/voter-auth-api/internal/application/session"
	"github.com/jhoicas/voter-auth-api/internal/domain/repository"
	"github.com/jhoicas/voter-auth-api/internal/infrastructure/audit"
	"github.com/jhoicas/voter-auth-api/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/voter-auth-api/internal/infrastructure/redis"
	httpRouter "github.com/jhoicas/voter-auth-api/internal/interfaces/http"
	"github.com/jhoicas/voter-auth-api/pkg/config"
	"github.com/jhoicas/voter-auth-api/pkg/jwt"
	"github.com/jhoicas/voter-auth-api/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

const swaggerFile = "./docs/swagger.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("revocation_backend", cfg.Revocation.Backend).
		Msg("iniciando aplicación")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migraciones")
	}

	userRepo := postgres.NewUserRepository(pool)
	tenantRepo := postgres.NewTenantRepository(pool)
	roleRepo := postgres.NewRoleRepository(pool)
	walletRepo := postgres.NewWalletRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	if err := seedRoles(ctx, roleRepo, log); err != nil {
		log.Fatal().Err(err).Msg("inicializar roles")
	}

	store, closeStore, err := revocationStore(ctx, cfg, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("almacén de revocación")
	}
	defer closeStore()

	policy, err := newPolicy(cfg, store, logger.Component(log, "session"))
	if err != nil {
		log.Fatal().Err(err).Msg("política de sesión")
	}
	if err := policy.Sync(ctx); err != nil {
		log.Warn().Err(err).Msg("sync inicial de revocaciones")
	}
	go policy.Run(ctx, cfg.Revocation.SyncInterval())

	var (
		auditPub auth.AuditPublisher
		notifier auth.RecoveryNotifier
	)
	if cfg.Audit.AMQPURL != "" {
		pub := audit.NewPublisher(audit.Config{
			URL:           cfg.Audit.AMQPURL,
			Queue:         cfg.Audit.Queue,
			RecoveryQueue: cfg.Audit.RecoveryQueue,
			Buffer:        cfg.Audit.Buffer,
			SendTimeout:   cfg.Audit.SendTimeout(),
		}, logger.Component(log, "audit"))
		defer func() { _ = pub.Close() }()
		auditPub, notifier = pub, pub
	} else {
		log.Warn().Msg("AMQP_URL vacío: sin auditoría ni envío de enlaces de recuperación")
	}

	authLog := logger.Component(log, "auth")
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	verifier := auth.NewVerifier(tenantRepo, userRepo, roleRepo, hasher, auth.VerifierConfig{
		Timeout: cfg.Auth.StoreTimeout(),
		Audit:   auditPub,
		Logger:  &authLog,
	})
	validator := auth.NewValidator(policy)
	authUC := auth.NewAuthUseCase(auth.AuthDeps{
		Verifier:    verifier,
		Issuer:      auth.NewIssuer(policy, cfg.JWT.Issuer, authLog),
		Validator:   validator,
		Policy:      policy,
		Hasher:      hasher,
		Tx:          txRunner,
		Users:       userRepo,
		Roles:       roleRepo,
		Wallets:     walletRepo,
		Notifier:    notifier,
		LinkBaseURL: cfg.Recovery.LinkBaseURL,
		Log:         authLog,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "Voter Auth API",
		}))
	}

	httpRouter.Router(app, httpRouter.RouterDeps{
		Auth:      authUC,
		Validator: validator,
		Metrics:   httpRouter.NewMetrics(),
		Health:    healthHandler(pool, cfg.App.Name),
		Logger:    logger.Component(log, "http"),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range signals {
		if sig == syscall.SIGHUP {
			reloadSigningKey(policy, log)
			continue
		}
		break
	}

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

// seedRoles reintenta mientras la base responde con errores transitorios.
func seedRoles(ctx context.Context, roles repository.RoleRepository, log zerolog.Logger) error {
	backoff := retry.WithMaxRetries(5, retry.NewExponential(250*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		seeded, err := bootstrap.EnsureSeedRoles(ctx, roles)
		if err != nil {
			log.Warn().Err(err).Msg("seed de roles")
			return retry.RetryableError(err)
		}
		log.Info().Int("roles", len(seeded)).Msg("roles inicializados")
		return nil
	})
}

// revocationStore elige el backend del conjunto de revocación compartido.
func revocationStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (repository.RevocationRepository, func(), error) {
	noop := func() {}
	if !cfg.Revocation.Enabled {
		return nil, noop, nil
	}
	switch cfg.Revocation.Backend {
	case config.RevocationPostgres:
		return postgres.NewRevocationRepository(pool), noop, nil
	case config.RevocationRedis:
		client, err := infraredis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, noop, err
		}
		return infraredis.NewRevocationStore(client, ""), func() { _ = client.Close() }, nil
	default:
		return nil, noop, nil
	}
}

// newPolicy arranca con la clave vigente. La anterior, si está configurada, verifica
// hasta JWT_PREVIOUS_VALID_UNTIL; el plazo es absoluto y no se reinicia con el proceso.
func newPolicy(cfg *config.Config, store repository.RevocationRepository, log zerolog.Logger, extra ...session.Option) (*session.Policy, error) {
	current := jwt.Key{ID: cfg.JWT.KeyID, Secret: []byte(cfg.JWT.Secret)}

	opts := []session.Option{session.WithLogger(log)}
	if store != nil {
		opts = append(opts, session.WithRevocationStore(store))
	}
	if cfg.JWT.PreviousSecret != "" {
		until, err := cfg.JWT.PreviousUntil()
		if err != nil {
			return nil, err
		}
		previous := jwt.Key{ID: cfg.JWT.PreviousKeyID, Secret: []byte(cfg.JWT.PreviousSecret)}
		opts = append(opts, session.WithPreviousKey(previous, until))
		log.Info().Str("previous_kid", previous.ID).Time("until", until).Msg("clave anterior aceptada")
	}
	opts = append(opts, extra...)

	return session.NewPolicy(session.Config{
		TTL:               cfg.JWT.TTL(),
		RotationGrace:     cfg.JWT.Grace(),
		RevocationEnabled: cfg.Revocation.Enabled,
		MaxSessionAge:     cfg.JWT.MaxSessionAge(),
		RecoveryTTL:       cfg.Recovery.TTL(),
	}, current, opts...)
}

// reloadSigningKey relee la configuración en SIGHUP y rota si cambió la clave.
// Mismo JWT_KEY_ID con otro secreto se rechaza y queda en el log.
func reloadSigningKey(policy *session.Policy, log zerolog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("recargar configuración")
		return
	}
	current := policy.CurrentSigningKey()
	next := jwt.Key{ID: cfg.JWT.KeyID, Secret: []byte(cfg.JWT.Secret)}
	if next.ID == current.ID && bytes.Equal(next.Secret, current.Secret) {
		log.Info().Str("kid", current.ID).Msg("SIGHUP sin cambio de clave")
		return
	}
	if err := policy.Rotate(next); err != nil {
		log.Error().Err(err).Str("kid", next.ID).Msg("rotar clave de firma")
		return
	}
	log.Info().Str("previous_kid", current.ID).Str("kid", next.ID).Msg("clave de firma recargada")
}

func healthHandler(pool *pgxpool.Pool, service string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			status := "degraded"
			if errors.Is(err, context.DeadlineExceeded) {
				status = "timeout"
			}
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": status, "service": service})
		}
		return c.JSON(fiber.Map{"status": "ok", "service": service})
	}
}
