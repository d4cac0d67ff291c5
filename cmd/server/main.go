package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"shelteraccess/internal/access"
	"shelteraccess/internal/audit"
	audithandler "shelteraccess/internal/audit/handler"
	auditkafka "shelteraccess/internal/audit/kafka"
	auditmem "shelteraccess/internal/audit/store/memory"
	auditpg "shelteraccess/internal/audit/store/postgres"
	credentialhandler "shelteraccess/internal/credential/handler"
	"shelteraccess/internal/credential/service"
	"shelteraccess/internal/credential/store/session"
	"shelteraccess/internal/piigate"
	"shelteraccess/internal/platform/config"
	"shelteraccess/internal/platform/httpserver"
	"shelteraccess/internal/platform/logger"
	"shelteraccess/internal/platform/metrics"
	platformredis "shelteraccess/internal/platform/redis"
	"shelteraccess/internal/records"
	"shelteraccess/internal/token"
	httptransport "shelteraccess/internal/transport/http"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	g, gctx := errgroup.WithContext(ctx)

	// Audit trail: the store everything else hangs off. Fail-closed, so it
	// comes up first and the process refuses to start without it.
	var auditStore audit.Store
	switch cfg.AuditBackend {
	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("open audit database: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping audit database: %w", err)
		}
		pgStore := auditpg.New(db)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure audit schema: %w", err)
		}
		auditStore = pgStore
	case config.BackendMemory:
		auditStore = auditmem.NewInMemoryStore()
	default:
		return fmt.Errorf("unknown audit backend %q", cfg.AuditBackend)
	}

	var logOpts []audit.Option
	if len(cfg.KafkaBrokers) > 0 {
		client, err := kgo.NewClient(kgo.SeedBrokers(cfg.KafkaBrokers...))
		if err != nil {
			return fmt.Errorf("create kafka client: %w", err)
		}
		defer client.Close()

		mirror := auditkafka.NewMirror(client, cfg.KafkaTopic, log, 256)
		if err := mirror.EnsureTopic(ctx, 1, 1); err != nil {
			return fmt.Errorf("ensure kafka topic: %w", err)
		}
		g.Go(func() error { return mirror.Run(gctx) })
		logOpts = append(logOpts, audit.WithMirror(mirror))
		log.Info("security event mirror enabled", "topic", cfg.KafkaTopic)
	}

	trail := audit.NewLog(auditStore, logOpts...)
	if cfg.AuditBackend == config.BackendPostgres {
		if err := trail.Resume(ctx); err != nil {
			return fmt.Errorf("resume audit chain: %w", err)
		}
	}

	// Session registry.
	var sessions session.Store
	switch cfg.SessionBackend {
	case config.BackendRedis:
		rdb, err := platformredis.New(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		if rdb == nil {
			return errors.New("session backend is redis but SHELTER_ACCESS_REDIS_URL is empty")
		}
		defer rdb.Close()
		sessions = session.NewRedisStore(rdb.Client, trail)
	case config.BackendMemory:
		sessions = session.NewInMemoryStore(trail)
	default:
		return fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}

	// Client records mirror, read-only.
	var clientRecords records.Store
	if cfg.RecordsURL != "" {
		pool, err := pgxpool.New(ctx, cfg.RecordsURL)
		if err != nil {
			return fmt.Errorf("connect records database: %w", err)
		}
		defer pool.Close()
		clientRecords = records.NewPostgresStore(pool)
	} else {
		mem := records.NewInMemoryStore()
		seedDevClients(mem)
		clientRecords = mem
	}

	tokens := token.NewService(cfg.JWTSigningKey, cfg.TokenIssuer)
	svc := service.New(access.DefaultPolicy(), sessions, trail, tokens, service.WithMetrics(m))
	gate := piigate.New(sessions, piigate.DefaultFieldRegistry(), clientRecords, trail, piigate.WithMetrics(m))

	router := httptransport.NewRouter(
		credentialhandler.New(svc, gate, tokens, log, m),
		audithandler.New(trail, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	g.Go(func() error {
		log.Info("starting shelteraccess engine", "addr", cfg.Addr,
			"session_backend", cfg.SessionBackend,
			"audit_backend", cfg.AuditBackend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Sweeper bounds how long an expired session can linger unnoticed.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				swept, err := sessions.Sweep(gctx, time.Now())
				if err != nil {
					log.ErrorContext(gctx, "session sweep failed", "error", err.Error())
					continue
				}
				if swept > 0 {
					m.SessionsExpired.Add(float64(swept))
					log.InfoContext(gctx, "swept expired sessions", "count", swept)
				}
				if active, err := sessions.ActiveCount(gctx); err == nil {
					m.ActiveSessions.Set(float64(active))
				}
			}
		}
	})

	return g.Wait()
}

// seedDevClients loads fixture records so the memory-backed development
// server has something behind the data gate.
func seedDevClients(store *records.InMemoryStore) {
	store.Seed("client-demo-1", map[string]string{
		"name":           "Alex Demo",
		"dateOfBirth":    "1987-04-12",
		"contactPhone":   "555-0142",
		"shelterHistory": "intake 2026-01-15",
		"diagnosis":      "hypertension",
		"medications":    "lisinopril 10mg",
		"benefitAmount":  "312.00",
		"incomeSource":   "part-time employment",
		"ssn":            "xxx-xx-4821",
	})
	store.Seed("client-demo-2", map[string]string{
		"name":         "Sam Demo",
		"dateOfBirth":  "1992-11-03",
		"contactPhone": "555-0178",
	})
}
