package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/twofactor/internal/config"
	module "github.com/dmitrymomot/twofactor/modules/twofactor"
	"github.com/dmitrymomot/twofactor/pkg/backupcode"
	"github.com/dmitrymomot/twofactor/pkg/httpserver"
	"github.com/dmitrymomot/twofactor/pkg/jwt"
	"github.com/dmitrymomot/twofactor/pkg/logger"
	"github.com/dmitrymomot/twofactor/pkg/mongo"
	"github.com/dmitrymomot/twofactor/pkg/pg"
	"github.com/dmitrymomot/twofactor/pkg/ratelimiter"
	"github.com/dmitrymomot/twofactor/pkg/redis"
	"github.com/dmitrymomot/twofactor/pkg/secrets"
	"github.com/dmitrymomot/twofactor/pkg/totp"
	"github.com/dmitrymomot/twofactor/pkg/twofactor"
	"github.com/dmitrymomot/twofactor/pkg/twofactor/mongostore"
	"github.com/dmitrymomot/twofactor/pkg/twofactor/pgstore"
	"github.com/dmitrymomot/twofactor/svc/account"
)

const readinessTimeout = 2 * time.Second

func newServeCmd(envFiles *[]string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadServer(*envFiles...)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.App)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log)
		},
	}
}

func newLogger(app config.App) (*slog.Logger, error) {
	return logger.FromConfig(app.Log, app.Env, app.Name,
		logger.WithContextValue("request_id", middleware.RequestIDKey),
	)
}

// backends holds the connections opened for the configured drivers.
type backends struct {
	pool  *pgxpool.Pool
	mongo *mongodriver.Database
	redis *goredis.Client
}

func (b *backends) close(ctx context.Context) {
	if b.pool != nil {
		b.pool.Close()
	}
	if b.mongo != nil {
		_ = b.mongo.Client().Disconnect(ctx)
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
}

// connect opens every backend the configuration asks for concurrently.
func connect(ctx context.Context, cfg config.Server) (*backends, error) {
	b := &backends{}
	g, gctx := errgroup.WithContext(ctx)

	switch cfg.StorageDriver {
	case config.StoragePostgres:
		g.Go(func() (err error) {
			b.pool, err = pg.Connect(gctx, cfg.PG)
			return err
		})
	case config.StorageMongo:
		g.Go(func() (err error) {
			b.mongo, err = mongo.NewDatabase(gctx, cfg.Mongo)
			return err
		})
	}
	if cfg.LimiterDriver == config.LimiterRedis {
		g.Go(func() (err error) {
			b.redis, err = redis.Connect(gctx, cfg.Redis)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		b.close(context.WithoutCancel(ctx))
		return nil, err
	}
	return b, nil
}

func loadMasterKey(ctx context.Context, cfg secrets.Config) ([]byte, error) {
	var client secrets.KeyDecrypter
	if cfg.UsesKMS() {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, errors.Join(secrets.ErrKeyUnwrapFailed, err)
		}
		client = kms.NewFromConfig(awsCfg)
	}
	return secrets.LoadMasterKey(ctx, cfg, client)
}

func serve(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	masterKey, err := loadMasterKey(ctx, cfg.Secrets)
	if err != nil {
		return err
	}
	secretCipher, err := secrets.NewCipher(masterKey, secrets.PurposeTOTPSecret)
	if err != nil {
		return err
	}
	codeCipher, err := secrets.NewCipher(masterKey, secrets.PurposeBackupCode)
	if err != nil {
		return err
	}
	codes, err := backupcode.NewManager(codeCipher, backupcode.WithCount(cfg.BackupCodes.Count))
	if err != nil {
		return err
	}

	b, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close(context.WithoutCancel(ctx))

	checks := map[string]httpserver.CheckFunc{}
	var (
		credentials twofactor.Store
		users       account.Storage
	)
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		credentials = pgstore.New(b.pool)
		users = account.NewPGStore(b.pool)
		checks["postgres"] = pg.Healthcheck(b.pool)
	case config.StorageMongo:
		credentials = mongostore.New(b.mongo, "")
		userStore := account.NewMongoStore(b.mongo)
		if err := userStore.EnsureIndexes(ctx); err != nil {
			return err
		}
		users = userStore
		checks["mongo"] = mongo.Healthcheck(b.mongo.Client())
	default:
		log.WarnContext(ctx, "using in-memory storage, data is lost on restart")
		credentials = twofactor.NewMemoryStore()
		users = account.NewMemoryStore()
	}

	opts := []twofactor.Option{
		twofactor.WithLogger(log),
		twofactor.WithValidator(totp.NewValidator(totp.WithSkew(cfg.TOTP.Skew))),
		twofactor.WithQRCodeSize(cfg.QRCode.Size),
	}

	var routeMiddleware []func(http.Handler) http.Handler
	if cfg.LimiterDriver != config.LimiterNone {
		var store ratelimiter.Store
		if cfg.LimiterDriver == config.LimiterRedis {
			store = ratelimiter.NewRedisStore(b.redis)
			checks["redis"] = redis.Healthcheck(b.redis)
		} else {
			mem := ratelimiter.NewMemoryStore()
			defer mem.Close()
			store = mem
		}

		perUser, err := ratelimiter.NewBucket(store, cfg.Limiter)
		if err != nil {
			return err
		}
		opts = append(opts, twofactor.WithLimiter(twofactor.LimiterFunc(func(ctx context.Context, key string) (bool, error) {
			res, err := perUser.Allow(ctx, key)
			if err != nil {
				return false, err
			}
			return res.Allowed(), nil
		})))

		perIP, err := ratelimiter.NewBucket(store, ratelimiter.Config{
			Capacity:       cfg.IPLimit,
			RefillRate:     cfg.IPLimit,
			RefillInterval: time.Minute,
		})
		if err != nil {
			return err
		}
		routeMiddleware = append(routeMiddleware, ratelimiter.Middleware(perIP, ratelimiter.KeyByIP("ip:"), module.TooManyRequests))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(log, readinessTimeout, checks))

	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics, err := twofactor.NewMetrics(reg)
		if err != nil {
			return err
		}
		opts = append(opts, twofactor.WithMetrics(metrics))
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	svc, err := twofactor.NewService(cfg.TOTP.Issuer, twofactor.Deps{
		Store:     credentials,
		Secrets:   secretCipher,
		Codes:     codes,
		Passwords: account.NewService(users, account.WithLogger(log)),
	}, opts...)
	if err != nil {
		return err
	}

	tokens, err := jwt.New(cfg.JWT)
	if err != nil {
		return err
	}
	h := module.NewHandler(svc, jwt.Middleware(tokens, module.Unauthorized),
		module.WithLogger(log),
		module.WithMiddleware(routeMiddleware...),
	)
	r.Mount("/2fa", h.Handle())

	log.InfoContext(ctx, "starting two-factor service",
		slog.String("addr", cfg.HTTP.Addr),
		slog.String("storage", cfg.StorageDriver),
		slog.String("limiter", cfg.LimiterDriver),
	)
	return httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log)).Run(ctx, r)
}
