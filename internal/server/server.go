package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/minqi/luckydraw/internal/api"
	"github.com/minqi/luckydraw/internal/draw"
	"github.com/minqi/luckydraw/internal/event"
	"github.com/minqi/luckydraw/internal/history"
	"github.com/minqi/luckydraw/internal/persist"
	"github.com/minqi/luckydraw/internal/roster"
	"github.com/minqi/luckydraw/internal/telemetry"
)

const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Storage struct {
		// Backend selects where the three documents live: "file" (default,
		// the desktop deployment), "redis" or "postgres".
		Backend string

		File struct {
			Dir string
		}

		Redis struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		Postgres struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis    redis.UniversalClient
		postgres *pgxpool.Pool
		store    persist.Store
	}

	engine *draw.Engine
	saver  *persist.Saver

	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initStore(); err != nil {
		return nil, fmt.Errorf("server: init store: %w", err)
	}

	if err := s.initEngine(); err != nil {
		return nil, fmt.Errorf("server: init engine: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initStore() error {
	switch s.c.Storage.Backend {
	case BackendRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    s.c.Storage.Redis.Addrs,
			Password: s.c.Storage.Redis.Pass,
		})
		if err := telemetry.MonitorRedis(r); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		if err := r.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}

		s.infra.redis = r
		s.infra.store = persist.NewRedis(r, s.c.Storage.Redis.Prefix)

	case BackendPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pc := s.c.Storage.Postgres
		cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", pc.User, pc.Pass, pc.Addr, pc.Name))
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := db.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}

		store, err := persist.NewPostgres(ctx, db)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}

		s.infra.postgres = db
		s.infra.store = store

	default:
		store, err := persist.NewFile(s.c.Storage.File.Dir)
		if err != nil {
			return fmt.Errorf("file: %w", err)
		}
		s.infra.store = store
	}

	return nil
}

func (s *Server) initEngine() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.engine = draw.NewEngine(draw.Config{
		Roster:   roster.NewStore(),
		History:  history.NewService(),
		EventBus: s.eb,
	})

	snap, ok, err := s.infra.store.Load(ctx)
	if err != nil {
		// A broken store never blocks startup; the app runs unpersisted
		// until the next successful save.
		slog.WarnContext(ctx, "server: load persisted state failed, starting fresh", "error", err)
	} else if ok {
		s.engine.ReplaceRoster(snap.Roster)
		s.engine.ReplaceConfig(snap.Config)
		s.engine.ReplaceHistory(snap.History)
		slog.InfoContext(ctx, "server: restored persisted state",
			"participants", len(snap.Roster),
			"history", len(snap.History),
		)
	}

	s.saver = persist.NewSaver(s.eb, s.engine, s.infra.store)
	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	api.New(api.Config{
		Engine:   s.engine,
		EventBus: s.eb,
	}).Register(e)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()
	s.saver.Flush(ctx)

	if s.infra.redis != nil {
		_ = s.infra.redis.Close()
	}
	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
