package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	appconfig "github.com/charlabot/charla/config"
	"github.com/charlabot/charla/internal/achievements"
	"github.com/charlabot/charla/internal/assistant"
	"github.com/charlabot/charla/internal/cache"
	"github.com/charlabot/charla/internal/notify"
	"github.com/charlabot/charla/internal/scheduler"
	"github.com/charlabot/charla/internal/search"
	"github.com/charlabot/charla/internal/store"
	openai "github.com/charlabot/charla/provider/openai"
)

// Run wires every component and serves until SIGINT/SIGTERM.
func Run(cfg *appconfig.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dsn, err := cfg.Databases.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: %w", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Databases.Redis.Addr(),
		Password: cfg.Databases.Redis.Pass,
		DB:       cfg.Databases.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed (%s): %w", cfg.Databases.Redis.Addr(), err)
	}

	secret := cfg.General.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (general.jwt_secret)")
	}
	if cfg.Providers.OpenAI.APIKey == "" {
		return fmt.Errorf("openai api key not configured (providers.openai.api_key)")
	}

	notifier := notify.NewRedisNotifier(rdb)
	engine := achievements.NewEngine(st, notifier, log.New(log.Writer(), "[ACHV] ", log.LstdFlags))

	sched := scheduler.New(st, notifier, log.New(log.Writer(), "[SCHED] ", log.LstdFlags))
	if n, err := sched.RecoverPending(ctx); err != nil {
		return fmt.Errorf("recover pending tasks: %w", err)
	} else if n > 0 {
		log.Printf("recovered %d pending tasks", n)
	}
	sched.Start(ctx)
	defer sched.Stop()

	jan, err := scheduler.NewJanitor(cfg.Uploads.Dir, cfg.Uploads.MaxAge, cfg.Uploads.SweepSchedule,
		log.New(log.Writer(), "[JANITOR] ", log.LstdFlags))
	if err != nil {
		return fmt.Errorf("upload janitor: %w", err)
	}
	jan.Start()
	defer jan.Stop()

	idx, err := search.NewMemIndex()
	if err != nil {
		return fmt.Errorf("search index: %w", err)
	}
	if turns, err := st.ListAllTurns(ctx); err != nil {
		return fmt.Errorf("rebuild search index: %w", err)
	} else if err := idx.Rebuild(turns); err != nil {
		return fmt.Errorf("rebuild search index: %w", err)
	}

	llm := openai.NewClient(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.BaseURL, cfg.Providers.OpenAI.Timeout)

	asstLogger := log.New(log.Writer(), "[CHAT] ", log.LstdFlags)
	asst := &assistant.Assistant{
		Store:        st,
		Cache:        cache.New(rdb),
		Provider:     llm,
		Achievements: engine,
		Index:        idx,
		Ingest:       assistant.NewURLIngester(0, 0, asstLogger),
		Logger:       asstLogger,
		MaxTokens:    cfg.Providers.OpenAI.MaxTokens,
		Temperature:  cfg.Providers.OpenAI.Temperature,
	}

	api := e.Group("/api")
	auth := &AuthHandler{Store: st, Secret: []byte(secret)}
	auth.Register(api.Group("/auth"))

	uploads := &UploadsHandler{Dir: cfg.Uploads.Dir}
	uploads.Register(api, e, auth.Secret)

	ch := &ChatHandler{Assistant: asst, Uploads: uploads}
	ch.Register(api.Group("/chat"), auth.Secret)

	hh := &HistoryHandler{Store: st, Index: idx}
	hh.Register(api, auth.Secret)

	th := &TasksHandler{Scheduler: sched}
	th.Register(api.Group("/tasks"), auth.Secret)

	ph := &ProfileHandler{Store: st}
	ph.Register(api, auth.Secret)

	if addr == "" {
		addr = cfg.General.Listen
		if addr != "" && addr[0] != ':' {
			addr = ":" + addr
		}
		if addr == "" {
			addr = ":8080"
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("listening on %s", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return e.Shutdown(context.Background())
	})
	return g.Wait()
}
