package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"anonid/internal/audit"
	auditpg "anonid/internal/audit/store/postgres"
	"anonid/internal/correlation"
	corrMetrics "anonid/internal/correlation/metrics"
	corrPorts "anonid/internal/correlation/ports"
	corrStore "anonid/internal/correlation/store"
	"anonid/internal/identity"
	jwttoken "anonid/internal/jwt_token"
	"anonid/internal/maintenance"
	"anonid/internal/platform/config"
	"anonid/internal/platform/metrics"
	"anonid/internal/platform/postgres"
	redisclient "anonid/internal/platform/redis"
	quotaMetrics "anonid/internal/ratelimit/metrics"
	"anonid/internal/ratelimit/ports"
	"anonid/internal/ratelimit/service/quota"
	quotaStore "anonid/internal/ratelimit/store/quota"
	"anonid/internal/resolver"
	"anonid/internal/resolver/adapters"
	"anonid/internal/resolver/handler"
	resolverMetrics "anonid/internal/resolver/metrics"
	"anonid/internal/temporal"
	"anonid/pkg/platform/audit/publishers/security"
	"anonid/pkg/platform/middleware/admin"
	"anonid/pkg/platform/middleware/auth"
	"anonid/pkg/platform/middleware/metadata"
	"anonid/pkg/platform/middleware/request"
	"anonid/pkg/platform/middleware/requesttime"
)

type application struct {
	router    http.Handler
	bus       *security.Publisher
	archive   *audit.ArchiveWorker
	scheduler *maintenance.Scheduler
	closers   []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *application, err error) {
	app := &application{}
	defer func() {
		if err != nil {
			app.close()
		}
	}()
	reg := metrics.New(version)

	rdb, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		app.closers = append(app.closers, func() { _ = rdb.Close() })
	}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	if db != nil {
		app.closers = append(app.closers, func() { _ = db.Close() })
	}

	sink, err := buildSink(ctx, cfg, log, rdb, app)
	if err != nil {
		return nil, err
	}
	app.bus, err = security.New(sink,
		security.WithLogger(log),
		security.WithMetrics(security.NewMetrics(reg)),
		security.WithBufferSize(cfg.Events.BufferSize),
		security.WithBatchSize(cfg.Events.BatchSize),
		security.WithFlushInterval(cfg.Events.FlushInterval),
		security.WithSampler(security.NewSampler(cfg.Events.SampleRate)),
		security.WithScrubSecrets(cfg.Hashing.Secret, cfg.Auth.JWTSigningKey),
	)
	if err != nil {
		return nil, fmt.Errorf("security events: %w", err)
	}

	trail, err := buildTrail(ctx, cfg, log, reg, db, app)
	if err != nil {
		return nil, err
	}

	windows, err := temporal.New(temporal.WithMonths(cfg.Window.Months), temporal.WithLocation(cfg.WindowLocation()))
	if err != nil {
		return nil, fmt.Errorf("window calculator: %w", err)
	}
	hasher, err := identity.NewHasher(cfg.Hashing.Secret, windows, trail,
		identity.WithLogger(log),
		identity.WithPublisher(app.bus),
		identity.WithMetrics(identity.NewMetrics(reg)),
	)
	if err != nil {
		return nil, fmt.Errorf("identity hasher: %w", err)
	}

	qm := quotaMetrics.New(reg)
	var qs ports.QuotaStore = quotaStore.New()
	if rdb != nil {
		qs = quotaStore.NewFallback(quotaStore.NewRedis(rdb, cfg.Redis.KeyPrefix), qs,
			quotaStore.WithFallbackLogger(log),
			quotaStore.WithFallbackMetrics(qm),
		)
	}
	guard, err := quota.New(qs,
		quota.WithLogger(log),
		quota.WithAuditPublisher(app.bus),
		quota.WithMetrics(qm),
		quota.WithDailyLimit(cfg.Quota.DailyLimit),
		quota.WithLocation(cfg.QuotaLocation()),
	)
	if err != nil {
		return nil, fmt.Errorf("quota guard: %w", err)
	}

	cm := corrMetrics.New(reg)
	var cs corrPorts.CorrelationStore = corrStore.NewMemory()
	if rdb != nil {
		cs = corrStore.NewFallback(corrStore.NewRedis(rdb, cfg.Redis.KeyPrefix), cs,
			corrStore.WithFallbackLogger(log),
			corrStore.WithFallbackMetrics(cm),
		)
	}
	engine, err := correlation.New(cs,
		correlation.WithLogger(log),
		correlation.WithAuditPublisher(app.bus),
		correlation.WithMetrics(cm),
		correlation.WithThreshold(cfg.Correlation.Threshold),
		correlation.WithHalfLife(cfg.Correlation.HalfLife),
		correlation.WithSaturation(cfg.Correlation.Saturation),
	)
	if err != nil {
		return nil, fmt.Errorf("correlation engine: %w", err)
	}

	svc, err := resolver.New(adapters.NewQuotaAdapter(guard), engine, hasher, trail,
		resolver.WithLogger(log),
		resolver.WithMetrics(resolverMetrics.New(reg)),
		resolver.WithSignalPublisher(app.bus),
	)
	if err != nil {
		return nil, fmt.Errorf("resolver: %w", err)
	}

	app.scheduler, err = maintenance.New(cfg.Maintenance.PruneSchedule, []maintenance.Job{
		{Name: "quota", Pruner: guard},
		{Name: "correlation", Pruner: engine},
	}, maintenance.WithLogger(log), maintenance.WithMetrics(maintenance.NewMetrics(reg)))
	if err != nil {
		return nil, err
	}

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	app.router = newRouter(cfg, log, reg, handler.New(svc, log), jwttoken.NewJWTServiceAdapter(jwtService), rdb)
	return app, nil
}

// buildSink fans security events out to the log and to every configured
// external stream.
func buildSink(ctx context.Context, cfg *config.Config, log *slog.Logger, rdb *redisclient.Client, app *application) (security.Sink, error) {
	sinks := security.FanOut{security.NewLogSink(log)}

	if cfg.Kafka.Enabled() {
		ks, err := security.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, ks.Close)
		if err := ks.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			return nil, err
		}
		sinks = append(sinks, ks)
	}

	if rdb != nil && cfg.Events.RedisStream != "" {
		rs, err := security.NewRedisStreamSink(rdb, cfg.Events.RedisStream, cfg.Events.StreamMaxLen)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, rs)
	}
	return sinks, nil
}

func buildTrail(ctx context.Context, cfg *config.Config, log *slog.Logger, reg *metrics.Registry, db *sql.DB, app *application) (*audit.Trail, error) {
	opts := []audit.Option{audit.WithLogger(log), audit.WithCapacity(cfg.Audit.Capacity)}
	if db != nil {
		store := auditpg.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		worker, err := audit.NewArchiveWorker(store,
			audit.WithArchiveLogger(log),
			audit.WithArchiveMetrics(audit.NewArchiveMetrics(reg)),
			audit.WithQueueSize(cfg.Postgres.ArchiveQueue),
		)
		if err != nil {
			return nil, fmt.Errorf("audit archive: %w", err)
		}
		app.archive = worker
		opts = append(opts, audit.WithArchive(worker))
	}
	return audit.NewTrail(opts...), nil
}

func newRouter(cfg *config.Config, log *slog.Logger, reg *metrics.Registry, h *handler.Handler, validator auth.JWTValidator, rdb *redisclient.Client) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata(cfg.Server.TrustProxy))
	r.Use(requesttime.Middleware)
	r.Use(request.AccessLog(log))
	r.Use(request.Recover(log))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]string{"status": "ok"}
		if rdb != nil {
			status["redis"] = "ok"
			if err := rdb.Health(req.Context()); err != nil {
				// Stores fall back to memory, so the process stays ready.
				status["redis"] = "degraded"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	})
	r.Handle("/metrics", reg.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(validator, log))
			h.Register(r)
		})
		r.Route("/admin", func(r chi.Router) {
			r.Use(admin.RequireAdminToken(cfg.Auth.AdminToken, log))
			h.RegisterAdmin(r)
		})
	})
	return r
}
