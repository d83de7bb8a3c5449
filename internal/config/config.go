package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// bcrypt hashes are always 60 characters: $2a$12$<22 char salt><31 char digest>
var bcryptHashPattern = regexp.MustCompile(`^\$2[aby]\$\d{2}\$`)

type Config struct {
	Port       string
	DBAdapter  string
	SQLiteFile string
	LogLevel   string
	CORSOrigin string

	// PostgreSQL connection settings
	PostgresDSN      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Token signing
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Bootstrap identity, used only when the user store is empty at startup.
	// Exactly one of AuthPassword / AuthPasswordHash is set: the hash-vs-plaintext
	// decision is made here, once, so nothing downstream branches on secret shape.
	AuthUsername     string
	AuthPassword     string
	AuthPasswordHash string
	Auth2FASecret    string
}

// BuildPostgresDSN constructs a PostgreSQL DSN from individual components or returns the provided DSN
func (c *Config) BuildPostgresDSN() (string, error) {
	// If DSN is provided directly, use it
	if c.PostgresDSN != "" {
		return c.PostgresDSN, nil
	}

	// Build DSN from individual components
	if c.PostgresHost == "" {
		return "", errors.New("POSTGRES_HOST or POSTGRES_DSN must be set")
	}
	if c.PostgresUser == "" {
		return "", errors.New("POSTGRES_USER must be set")
	}
	if c.PostgresDB == "" {
		return "", errors.New("POSTGRES_DB must be set")
	}

	port := c.PostgresPort
	if port == "" {
		port = "5432"
	}

	sslMode := c.PostgresSSLMode
	if sslMode == "" {
		sslMode = "disable" // Default to disable for local development
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.PostgresHost, port, c.PostgresUser, c.PostgresDB, sslMode)

	if c.PostgresPassword != "" {
		dsn += " password=" + c.PostgresPassword
	}

	return dsn, nil
}

// New loads configuration from an optional .env file plus the process
// environment and validates it.
func New() (*Config, error) {
	return Load(".env")
}

func Load(envFile string) (*Config, error) {
	k := koanf.New(".")

	// The .env file is optional; environment variables always win.
	if _, err := os.Stat(envFile); err == nil {
		if err := k.Load(file.Provider(envFile), dotenv.Parser()); err != nil {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	get := func(key, def string) string {
		if v := k.String(key); v != "" {
			return v
		}
		return def
	}

	c := &Config{
		Port:       get("PORT", "8080"),
		DBAdapter:  get("DB_ADAPTER", "sqlite"),
		SQLiteFile: get("SQLITE_FILE", "./data/auth.db"),
		LogLevel:   get("LOG_LEVEL", "info"),
		CORSOrigin: get("CORS_ORIGIN", "*"),

		PostgresDSN:      get("POSTGRES_DSN", ""),
		PostgresHost:     get("POSTGRES_HOST", get("DB_HOST", "localhost")),
		PostgresPort:     get("POSTGRES_PORT", get("DB_PORT", "5432")),
		PostgresUser:     get("POSTGRES_USER", get("DB_USER", "auth")),
		PostgresPassword: get("POSTGRES_PASSWORD", get("DB_PASSWORD", "")),
		PostgresDB:       get("POSTGRES_DB", get("DB_NAME", "authstarter")),
		PostgresSSLMode:  get("POSTGRES_SSLMODE", get("DB_SSLMODE", "disable")),

		JWTSecret: get("JWT_SECRET", "change-me"),

		AuthUsername:  get("AUTH_USERNAME", "admin"),
		Auth2FASecret: get("AUTH_2FA_SECRET", ""),
	}

	var err error
	if c.AccessTokenTTL, err = time.ParseDuration(get("ACCESS_TOKEN_TTL", "15m")); err != nil {
		return nil, fmt.Errorf("invalid ACCESS_TOKEN_TTL: %w", err)
	}
	if c.RefreshTokenTTL, err = time.ParseDuration(get("REFRESH_TOKEN_TTL", "168h")); err != nil {
		return nil, fmt.Errorf("invalid REFRESH_TOKEN_TTL: %w", err)
	}

	// AUTH_PASSWORD may hold either a plaintext password (hashed at bootstrap)
	// or an already-bcrypted hash. Decide which it is here; anything that looks
	// like a hash but is not canonical is rejected rather than silently treated
	// as plaintext.
	password := get("AUTH_PASSWORD", "admin123")
	if bcryptHashPattern.MatchString(password) {
		if len(password) != 60 {
			return nil, errors.New("AUTH_PASSWORD looks like a bcrypt hash but is malformed")
		}
		c.AuthPasswordHash = password
	} else {
		c.AuthPassword = password
	}

	if c.DBAdapter == "postgres" {
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return nil, fmt.Errorf("postgres configuration error: %w", err)
		}
		c.PostgresDSN = dsn
	}

	if c.DBAdapter == "sqlite" && c.SQLiteFile == "" {
		return nil, errors.New("SQLITE_FILE must be set when DB_ADAPTER=sqlite")
	}

	// Validate JWT secret in production
	environment := strings.ToLower(get("ENV", get("NODE_ENV", "")))
	if environment == "production" || environment == "prod" {
		if c.JWTSecret == "" || c.JWTSecret == "change-me" {
			return nil, errors.New("JWT_SECRET must be set in production")
		}
		if len(c.JWTSecret) < 32 {
			return nil, errors.New("JWT_SECRET must be at least 32 characters in production")
		}
	}

	// normalize port
	if _, err := strconv.Atoi(c.Port); err != nil {
		return nil, fmt.Errorf("invalid PORT: %s", c.Port)
	}

	return c, nil
}
