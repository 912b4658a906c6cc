package app

import (
	"context"
	"fmt"
	"hoursrelay/internal/actiontoken"
	"hoursrelay/internal/config"
	"hoursrelay/internal/db"
	"hoursrelay/internal/handlers"
	"hoursrelay/internal/logger"
	"hoursrelay/internal/middleware"
	"hoursrelay/internal/repository"
	"hoursrelay/internal/routes"
	"hoursrelay/internal/services"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App - собранный сервис. Close останавливает фоновые задачи и закрывает соединения.
type App struct {
	Router  *mux.Router
	closers []func()
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func InitApp(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}
	ctx, cancel := context.WithCancel(ctx)
	a.closers = append(a.closers, cancel)

	fail := func(err error) (*App, error) {
		a.Close()
		return nil, err
	}

	// Кодек ссылок: без нормального секрета не стартуем
	codec, err := actiontoken.NewCodec(cfg.SecretKey)
	if err != nil {
		return fail(fmt.Errorf("SECRET_KEY: %w", err))
	}

	// Хранилище записей
	var store repository.RecordStore
	if cfg.UsePostgres() {
		pool, err := db.NewPostgresConnection(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		a.closers = append(a.closers, pool.Close)
		store = repository.NewPostgresStore(pool)
		logger.Log.Info("Хранилище: Postgres", zap.String("dsn", cfg.GetDSNSafe()))
	} else {
		store = repository.NewRESTStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, nil)
		logger.Log.Info("Хранилище: Supabase REST", zap.String("url", cfg.SupabaseURL))
	}

	// Отметки о погашенных ссылках
	consumed, err := newConsumedStore(ctx, cfg, a)
	if err != nil {
		return fail(err)
	}

	// Сервисы
	templates, err := services.NewTemplateService(cfg.TemplatesDir)
	if err != nil {
		return fail(err)
	}
	emailService := services.NewEmailService(cfg)
	queue := services.NewMailQueue(emailService, 100)
	queue.Start(cfg.EmailWorkers)
	a.closers = append(a.closers, queue.Close)

	notifier := services.NewNotificationService(store, consumed, codec, emailService, queue, templates, cfg.FrontendURL)

	// Хендлеры
	emailHandler := handlers.NewEmailHandler(notifier, cfg.FrontendURL)
	healthHandler := handlers.NewHealthHandler(store, cfg.SMTPConfigured())

	limiter := middleware.NewIPRateLimiter(cfg.VerifyRatePerMin, 0)
	if err := limiter.TrustProxies(cfg.TrustedProxies); err != nil {
		return fail(fmt.Errorf("TRUSTED_PROXIES: %w", err))
	}
	StartLimiterCleaner(ctx, limiter, 5*time.Minute)

	// Маршруты
	a.Router = mux.NewRouter()
	routes.InitRoutes(a.Router, emailHandler, healthHandler, routes.Options{
		ServiceJWTSecret: cfg.ServiceJWTSecret,
		VerifyLimiter:    limiter,
	})

	return a, nil
}

func newConsumedStore(ctx context.Context, cfg *config.Config, a *App) (repository.ConsumedStore, error) {
	if cfg.RedisAddr == "" {
		mem := repository.NewMemoryConsumedStore()
		mem.StartSweeper(ctx, time.Minute)
		logger.Log.Warn("Погашенные ссылки хранятся в памяти процесса")
		return mem, nil
	}

	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}
	a.closers = append(a.closers, func() { _ = rc.Close() })
	logger.Log.Info("Погашенные ссылки хранятся в Redis", zap.String("addr", cfg.RedisAddr))
	return repository.NewRedisConsumedStore(rc, ""), nil
}

// StartLimiterCleaner периодически выкидывает лимитеры неактивных IP.
func StartLimiterCleaner(ctx context.Context, l *middleware.IPRateLimiter, every time.Duration) {
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := l.Cleanup(); n > 0 {
					logger.Log.Debug("Очищены лимитеры", zap.Int("removed", n))
				}
			}
		}
	}()
}
