package config

import (
	"fmt"
	"hoursrelay/internal/actiontoken"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Прямое подключение к Postgres (необязательно, иначе REST API Supabase)
	DbHost    string
	DbPort    string
	DbUser    string
	DbPass    string
	DbName    string
	DbSSLMode string

	SupabaseURL        string
	SupabaseServiceKey string

	// SecretKey подписывает ссылки approve/deny в письмах.
	SecretKey        string
	ServiceJWTSecret string

	RedisAddr string
	RedisDB   int

	Log      string
	LogLevel string
	Env      string // dev|prod

	SMTPServer   string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFromName string

	FrontendURL  string
	TemplatesDir string

	EmailWorkers     int
	VerifyRatePerMin int
	// TrustedProxies - сети обратных прокси (CIDR или адреса), чей X-Forwarded-For учитывается.
	TrustedProxies []string
}

// LoadConfig загружает .env, читает переменные окружения и выставляет дефолты.
// Ничего не логирует: logger настраивается уже по готовому конфигу.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	def := func(v, d string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return d
		}
		return v
	}

	smtpPort, err := strconv.Atoi(def(os.Getenv("SMTP_PORT"), "587"))
	if err != nil {
		return nil, fmt.Errorf("SMTP_PORT: %w", err)
	}
	redisDB, err := strconv.Atoi(def(os.Getenv("REDIS_DB"), "0"))
	if err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	workers, err := strconv.Atoi(def(os.Getenv("EMAIL_WORKERS"), "3"))
	if err != nil {
		return nil, fmt.Errorf("EMAIL_WORKERS: %w", err)
	}
	verifyRate, err := strconv.Atoi(def(os.Getenv("VERIFY_RATE_PER_MIN"), "30"))
	if err != nil {
		return nil, fmt.Errorf("VERIFY_RATE_PER_MIN: %w", err)
	}

	cfg := &Config{
		Port:      def(os.Getenv("PORT"), "5000"),
		DbHost:    os.Getenv("DB_HOST"),
		DbPort:    def(os.Getenv("DB_PORT"), "5432"),
		DbUser:    os.Getenv("DB_USER"),
		DbPass:    os.Getenv("DB_PASSWORD"),
		DbName:    os.Getenv("DB_NAME"),
		DbSSLMode: def(os.Getenv("DB_SSLMODE"), "require"),

		SupabaseURL:        strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),

		SecretKey:        os.Getenv("SECRET_KEY"),
		ServiceJWTSecret: os.Getenv("SERVICE_JWT_SECRET"),

		RedisAddr: os.Getenv("REDIS_ADDR"),
		RedisDB:   redisDB,

		Log:      os.Getenv("LOG"),
		LogLevel: strings.ToLower(def(os.Getenv("LOGLEVEL"), "info")),
		Env:      strings.ToLower(def(os.Getenv("ENV"), "prod")),

		SMTPServer:   def(os.Getenv("SMTP_SERVER"), "smtp.gmail.com"),
		SMTPPort:     smtpPort,
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFromName: def(os.Getenv("MAIL_FROM_NAME"), "CATA Volunteer"),

		FrontendURL:  strings.TrimRight(def(os.Getenv("FRONTEND_URL"), "http://localhost:3000"), "/"),
		TemplatesDir: os.Getenv("TEMPLATES_DIR"),

		EmailWorkers:     workers,
		VerifyRatePerMin: verifyRate,
		TrustedProxies:   splitList(os.Getenv("TRUSTED_PROXIES")),
	}

	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate возвращает предупреждения и фатальную ошибку (если критично).
func (c *Config) Validate() (warnings []string, err error) {
	// Критично: без нормального секрета ссылки можно подделать
	if err := actiontoken.CheckSecret(c.SecretKey); err != nil {
		return nil, fmt.Errorf("SECRET_KEY: %w", err)
	}

	// Критично: хранилище записей
	if !c.UsePostgres() && (c.SupabaseURL == "" || c.SupabaseServiceKey == "") {
		return nil, fmt.Errorf("no record store configured (SUPABASE_URL/SUPABASE_SERVICE_ROLE_KEY or DB_HOST/DB_USER/DB_NAME)")
	}

	if c.SMTPUsername == "" || c.SMTPPassword == "" {
		warnings = append(warnings, "SMTP is not fully configured")
	}

	if strings.TrimSpace(c.ServiceJWTSecret) == "" {
		warnings = append(warnings, "SERVICE_JWT_SECRET is empty, notification endpoints are not authenticated")
	}

	if c.RedisAddr == "" {
		warnings = append(warnings, "REDIS_ADDR is empty, consumed tokens are tracked in memory only")
	}

	if c.EmailWorkers <= 0 {
		warnings = append(warnings, "EMAIL_WORKERS <= 0, using 1")
		c.EmailWorkers = 1
	}

	return warnings, nil
}

// UsePostgres - true, если заданы реквизиты прямого подключения к БД.
func (c *Config) UsePostgres() bool {
	return c.DbHost != "" && c.DbUser != "" && c.DbName != ""
}

// GetDSN - полная DSN (с паролем)
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DbUser, c.DbPass, c.DbHost, c.DbPort, c.DbName, c.DbSSLMode,
	)
}

// GetDSNSafe - DSN без пароля (для логов)
func (c *Config) GetDSNSafe() string {
	return fmt.Sprintf(
		"postgres://%s:***@%s:%s/%s?sslmode=%s",
		c.DbUser, c.DbHost, c.DbPort, c.DbName, c.DbSSLMode,
	)
}

// SMTPConfigured - для health-эндпоинта.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPUsername != "" && c.SMTPPassword != ""
}
