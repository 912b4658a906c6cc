package middleware

import (
	"hoursrelay/internal/logger"
	"hoursrelay/internal/metrics"
	"hoursrelay/internal/reqctx"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)

		elapsed := time.Since(start)
		metrics.ObserveHTTP(routeName(r), r.Method, strconv.Itoa(lrw.statusCode), elapsed.Seconds())

		// в query verify-hours лежит токен, поэтому пишем только путь
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", lrw.statusCode),
			zap.Duration("duration", elapsed),
		}

		if rid, ok := reqctx.GetRequestID(r.Context()); ok {
			fields = append(fields, zap.String("request_id", rid))
		}
		if caller, ok := reqctx.GetCaller(r.Context()); ok {
			fields = append(fields, zap.String("caller", caller))
		}
		if role, ok := RoleFrom(r.Context()); ok {
			fields = append(fields, zap.String("role", role))
		}

		logger.Log.Info("HTTP-запрос", fields...)
	})
}

// routeName - шаблон маршрута mux, чтобы не плодить метки по сырым путям.
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}
