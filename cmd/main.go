package main

import (
	"context"
	"errors"
	_ "hoursrelay/docs"
	"hoursrelay/internal/app"
	"hoursrelay/internal/config"
	"hoursrelay/internal/logger"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// @title Hours Relay API
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @version 1.0
// @description Отправка писем о волонтёрских часах и погашение ссылок approve/deny.
// @BasePath /
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		// логгер ещё не настроен
		logger.InitLogger(&config.Config{LogLevel: "info"})
		logger.Log.Fatal("Ошибка загрузки конфига", zap.Error(err))
	}
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	warnings, err := cfg.Validate()
	if err != nil {
		logger.Log.Fatal("Некорректная конфигурация", zap.Error(err))
	}
	for _, w := range warnings {
		logger.Log.Warn("Конфигурация", zap.String("warning", w))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.InitApp(ctx, cfg)
	if err != nil {
		logger.Log.Fatal("Ошибка инициализации приложения", zap.Error(err))
	}

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{cfg.FrontendURL},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	})

	application.Router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsMiddleware.Handler(application.Router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// done закрывается, когда Shutdown дождался активных запросов.
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Ошибка остановки сервера", zap.Error(err))
		}
	}()

	logger.Log.Info("Сервер запущен", zap.String("port", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		application.Close()
		logger.Log.Fatal("Ошибка запуска сервера", zap.Error(err))
	}
	<-done
	application.Close()
	logger.Log.Info("Сервер остановлен")
}
