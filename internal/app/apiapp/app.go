package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/listergram/backend/internal/config"
	"github.com/listergram/backend/internal/infra/metrics"
	"github.com/listergram/backend/internal/jobs/expiry"
	"github.com/listergram/backend/internal/repo/memory"
	pgrepo "github.com/listergram/backend/internal/repo/postgres"
	redrepo "github.com/listergram/backend/internal/repo/redis"
	authsvc "github.com/listergram/backend/internal/services/auth"
	convsvc "github.com/listergram/backend/internal/services/conversations"
	matchingsvc "github.com/listergram/backend/internal/services/matching"
	profilesvc "github.com/listergram/backend/internal/services/profiles"
	ratesvc "github.com/listergram/backend/internal/services/rate"
	"github.com/listergram/backend/internal/transport/http/handlers"
	"github.com/listergram/backend/internal/transport/ws"
)

const (
	accessTokenTTL  = 24 * time.Hour
	shutdownTimeout = 10 * time.Second
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	hub        *ws.Hub
	expiry     *expiry.Job
	store      *storage
	redis      *goredis.Client
	httpRouter http.Handler
}

// storage is the set of repositories behind the services. Postgres and the
// in-memory store both satisfy it.
type storage struct {
	tx interface {
		profilesvc.Transactor
		matchingsvc.Transactor
		convsvc.Transactor
	}
	profiles interface {
		profilesvc.ProfileStore
		matchingsvc.ProfileStore
	}
	swipes  matchingsvc.SwipeStore
	matches interface {
		matchingsvc.MatchStore
		convsvc.MatchStore
		expiry.MatchExpirer
	}
	messages interface {
		convsvc.MessageStore
		matchingsvc.MessageLookup
	}
	quotas  matchingsvc.QuotaStore
	blocks  matchingsvc.BlockStore
	reports matchingsvc.ReportStore
	ping    handlers.Pinger
	close   func()
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	quotaLocation, err := time.LoadLocation(cfg.Matching.QuotaTimezone)
	if err != nil {
		store.close()
		return nil, fmt.Errorf("load quota timezone: %w", err)
	}

	var (
		redisClient    *goredis.Client
		swipeLimiter   matchingsvc.RateLimiter
		messageLimiter convsvc.RateLimiter
	)
	if c, err := redrepo.NewClient(ctx, redrepo.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}); err != nil {
		log.Warn("redis init failed, rate limits disabled", zap.Error(err))
	} else {
		redisClient = c
		rateRepo := redrepo.NewRateRepo(redisClient)
		swipeLimiter = ratesvc.NewLimiter(rateRepo, "swipes",
			ratesvc.PerMinute(cfg.Matching.SwipesPerMinute),
			ratesvc.Per10Seconds(cfg.Matching.SwipesPer10Seconds),
		)
		messageLimiter = ratesvc.NewLimiter(rateRepo, "messages",
			ratesvc.PerMinute(cfg.Conversations.MessagesPerMinute),
		)
	}

	collector := metrics.NewCollector()
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collector,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := ws.NewHub(log, collector)
	notifier := ws.NewHubNotifier(hub)
	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, accessTokenTTL)

	profileService := profilesvc.NewService(profilesvc.Dependencies{
		Tx:    store.tx,
		Store: store.profiles,
	}, profilesvc.Config{
		CandidatePageSize: cfg.Matching.CandidatePageSize,
	})
	matchingService := matchingsvc.NewService(matchingsvc.Dependencies{
		Tx:          store.tx,
		Profiles:    store.profiles,
		Swipes:      store.swipes,
		Matches:     store.matches,
		Quotas:      store.quotas,
		Blocks:      store.blocks,
		Reports:     store.reports,
		Messages:    store.messages,
		RateLimiter: swipeLimiter,
		Notifier:    notifier,
		Metrics:     collector,
		Logger:      log,
	}, matchingsvc.Config{
		MatchTTL:         cfg.Matching.MatchTTL,
		SuperlikesPerDay: cfg.Matching.SuperlikesPerDay,
		QuotaLocation:    quotaLocation,
	})
	conversationService := convsvc.NewService(convsvc.Dependencies{
		Tx:          store.tx,
		Matches:     store.matches,
		Messages:    store.messages,
		RateLimiter: messageLimiter,
		Notifier:    notifier,
		Metrics:     collector,
		Logger:      log,
	}, convsvc.Config{
		MaxTextLength:   cfg.Conversations.MaxTextLength,
		DefaultPageSize: cfg.Conversations.DefaultPageSize,
		MaxPageSize:     cfg.Conversations.MaxPageSize,
	})
	expiryJob := expiry.New(store.matches, collector, expiry.Config{
		Interval: cfg.Jobs.ExpirySweepInterval,
	}, log)

	healthChecks := map[string]handlers.Pinger{"store": store.ping}
	if redisClient != nil {
		healthChecks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log, collector, cfg.HTTP.AllowedOrigins)
	RegisterRoutes(r, Dependencies{
		ProfileService:      profileService,
		MatchingService:     matchingService,
		ConversationService: conversationService,
		Tokens:              jwtManager,
		HealthChecks:        healthChecks,
		Metrics:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		WebSocket:           ws.ServeWS(hub, jwtManager, originPatterns(cfg.HTTP.AllowedOrigins)),
		Logger:              log,
	})

	server := &http.Server{
		Addr:        cfg.HTTP.Addr,
		Handler:     r,
		ReadTimeout: cfg.HTTP.ReadTimeout,
		IdleTimeout: cfg.HTTP.IdleTimeout,
		// No WriteTimeout: websocket streams outlive any fixed deadline.
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		hub:        hub,
		expiry:     expiryJob,
		store:      store,
		redis:      redisClient,
		httpRouter: r,
	}, nil
}

func openStorage(ctx context.Context, cfg config.Config, log *zap.Logger) (*storage, error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		log.Warn("using in-memory store, data is lost on restart")
		mem := memory.New()
		return &storage{
			tx:       mem,
			profiles: mem.Profiles(),
			swipes:   mem.Swipes(),
			matches:  mem.Matches(),
			messages: mem.Messages(),
			quotas:   mem.Quotas(),
			blocks:   mem.Blocks(),
			reports:  mem.Reports(),
			ping:     handlers.PingFunc(func(context.Context) error { return nil }),
			close:    func() {},
		}, nil
	}

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN, pgrepo.PoolOptions{MaxConns: int32(cfg.Postgres.MaxConns)})
	if err != nil {
		return nil, err
	}
	if cfg.Postgres.RunMigrations {
		if err := pgrepo.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return &storage{
		tx: pgrepo.NewRunner(pool, pgrepo.RetryConfig{
			Attempts: cfg.Store.RetryAttempts,
			Delay:    cfg.Store.RetryDelay,
		}, log),
		profiles: pgrepo.NewProfileRepo(pool),
		swipes:   pgrepo.NewSwipeRepo(pool),
		matches:  pgrepo.NewMatchRepo(pool),
		messages: pgrepo.NewMessageRepo(pool),
		quotas:   pgrepo.NewQuotaRepo(pool),
		blocks:   pgrepo.NewBlockRepo(pool),
		reports:  pgrepo.NewReportRepo(pool),
		ping:     pool,
		close:    pool.Close,
	}, nil
}

// originPatterns turns CORS origins into host patterns for the websocket
// origin check.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, origin)
	}
	return out
}

// Run serves HTTP and runs the hub and the expiry sweep until ctx is done
// or one of them fails. The server is drained before Run returns.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return a.expiry.Run(ctx)
	})
	g.Go(func() error {
		a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) Close() error {
	if a.store != nil {
		a.store.close()
	}
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
