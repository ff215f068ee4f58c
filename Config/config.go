package Config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDriver         string
	DBDSN            string
	Port             string
	JWTSecret        string
	AllowOrigins     string
	LogDir           string
	GormLogLevel     string
	TATSLAMinutes    int
	TATCheckSchedule string
	SlackBotToken    string
	SlackChannel     string
	SMTP             SMTPConfig
	AlertEmails      []string
}

type SMTPConfig struct {
	Server       string
	Port         int
	Username     string
	Password     string
	FromEmail    string
	FromName     string
	TLSEnabled   bool
	SkipTLSCheck bool
}

// Load reads .env (or the given files) into the process environment and
// builds the configuration from it. A missing .env is not an error.
func Load(files ...string) Config {
	if len(files) == 0 {
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Error loading env files %v: %v", files, err)
	}

	return Config{
		DBDriver:         strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:            getEnv("DB_DSN", "database.db"),
		Port:             getEnv("PORT", "3001"),
		JWTSecret:        getEnv("JWT_SECRET", "secret"),
		AllowOrigins:     getEnv("ALLOW_ORIGINS", "*"),
		LogDir:           getEnv("LOG_DIR", "logs"),
		GormLogLevel:     strings.ToLower(getEnv("GORM_LOG_LEVEL", "warn")),
		TATSLAMinutes:    getEnvInt("TAT_SLA_MINUTES", 48*60),
		TATCheckSchedule: getEnv("TAT_CHECK_SCHEDULE", "0 */15 * * * *"),
		SlackBotToken:    getEnv("SLACK_BOT_TOKEN", ""),
		SlackChannel:     getEnv("SLACK_TAT_CHANNEL", ""),
		SMTP: SMTPConfig{
			Server:       getEnv("SMTP_SERVER", ""),
			Port:         getEnvInt("SMTP_PORT", 587),
			Username:     getEnv("SMTP_USERNAME", ""),
			Password:     getEnv("SMTP_PASSWORD", ""),
			FromEmail:    getEnv("SMTP_FROM_EMAIL", ""),
			FromName:     getEnv("SMTP_FROM_NAME", "SpareLink"),
			TLSEnabled:   getEnv("SMTP_TLS", "false") == "true",
			SkipTLSCheck: getEnv("SMTP_SKIP_TLS_CHECK", "false") == "true",
		},
		AlertEmails: splitList(getEnv("TAT_ALERT_EMAILS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
