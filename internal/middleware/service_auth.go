package middleware

import (
	"context"
	"hoursrelay/internal/logger"
	"hoursrelay/internal/reqctx"
	helpers "hoursrelay/internal/utils/helpres"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ServiceClaims - payload токена, которым платформа вызывает POST-эндпоинты.
type ServiceClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ServiceAuth проверяет Bearer JWT (HS256). С пустым secret пропускает всё:
// об этом предупреждает config.Validate при старте.
func ServiceAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if secret == "" {
				ctx := context.WithValue(r.Context(), contextAuthDisabled, true)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				logger.WithCtx(r.Context()).Warn("ServiceAuth: отсутствует токен")
				helpers.Error(w, http.StatusUnauthorized, "Missing bearer token")
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")

			claims := &ServiceClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

			if err != nil || !token.Valid {
				logger.WithCtx(r.Context()).Warn("ServiceAuth: неверный или просроченный токен", zap.Error(err))
				helpers.Error(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			if claims.Role == "" {
				logger.WithCtx(r.Context()).Warn("ServiceAuth: в токене нет роли", zap.String("sub", claims.Subject))
				helpers.Error(w, http.StatusUnauthorized, "Invalid token payload")
				return
			}

			ctx := WithRole(r.Context(), claims.Role)
			if claims.Subject != "" {
				ctx = reqctx.WithCaller(ctx, claims.Subject)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GenerateServiceToken выпускает HS256-токен для вызова API (используется CLI и тестами).
func GenerateServiceToken(secret, subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ServiceClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
