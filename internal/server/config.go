package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"mytask/internal/domain/errors"
	"mytask/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Addr        string        `json:"addr"`
	Port        int           `json:"port"`
	Storage     string        `json:"storage"`
	DBStr       string        `json:"db_str"`
	MigratePath string        `json:"migrate_path"`
	JWTSecret   string        `json:"jwt_secret"`
	TokenTTL    time.Duration `json:"token_ttl"`
	LogLevel    string        `json:"log_level"`
	LogFormat   string        `json:"log_format"`
	LogOutput   string        `json:"log_output"`
	LogFile     string        `json:"log_file"`
}

const (
	defaultAddr        = "0.0.0.0"
	defaultPort        = 8080
	defaultStorage     = StoragePostgres
	defaultDBStr       = "postgresql://mytask:mytask@db:5432/tasks?sslmode=disable"
	defaultMigratePath = "migrations"
	defaultJWTSecret   = "change-me-in-production"
	defaultTokenTTL    = 7 * 24 * time.Hour
)

func DefaultConfig() *Config {
	lc := logger.DefaultConfig()
	return &Config{
		Addr:        defaultAddr,
		Port:        defaultPort,
		Storage:     defaultStorage,
		DBStr:       defaultDBStr,
		MigratePath: defaultMigratePath,
		JWTSecret:   defaultJWTSecret,
		TokenTTL:    defaultTokenTTL,
		LogLevel:    lc.Level,
		LogFormat:   lc.Format,
		LogOutput:   lc.Output,
		LogFile:     lc.FilePath,
	}
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Addr, c.Port)
}

// UnmarshalJSON accepts token_ttl either as a duration string ("24h") or as
// integer nanoseconds.
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	aux := struct {
		*plain
		TokenTTL json.RawMessage `json:"token_ttl"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.TokenTTL) == 0 || string(aux.TokenTTL) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(aux.TokenTTL, &s); err == nil {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%w: token_ttl %q", errors.ErrConfigInvalidFormat, s)
		}
		c.TokenTTL = d
		return nil
	}

	var n int64
	if err := json.Unmarshal(aux.TokenTTL, &n); err != nil {
		return fmt.Errorf("%w: token_ttl %s", errors.ErrConfigInvalidFormat, aux.TokenTTL)
	}
	c.TokenTTL = time.Duration(n)
	return nil
}

func (c *Config) Logger() logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = c.LogLevel
	lc.Format = c.LogFormat
	lc.Output = c.LogOutput
	lc.FilePath = c.LogFile
	return lc
}

type cliFlags struct {
	set         *pflag.FlagSet
	configFile  string
	envFile     string
	addr        string
	port        int
	storage     string
	dbStr       string
	dbDsn       string
	migratePath string
	jwtSecret   string
	tokenTTL    time.Duration
	logLevel    string
}

func newFlags(name string) *cliFlags {
	f := &cliFlags{set: pflag.NewFlagSet(name, pflag.ContinueOnError)}
	f.set.StringVarP(&f.configFile, "config", "c", "", "path to a JSON config file")
	f.set.StringVar(&f.envFile, "env-file", ".env", "path to a .env file (ignored if missing)")
	f.set.StringVar(&f.addr, "addr", defaultAddr, "listen address")
	f.set.IntVar(&f.port, "port", defaultPort, "listen port")
	f.set.StringVar(&f.storage, "storage", defaultStorage, "task store backend: postgres or memory")
	f.set.StringVar(&f.dbStr, "dbstr", defaultDBStr, "database connection string")
	f.set.StringVar(&f.dbDsn, "dbdsn", "", "database DSN (takes precedence over --dbstr)")
	f.set.StringVar(&f.migratePath, "migratepath", defaultMigratePath, "path to the migrations directory")
	f.set.StringVar(&f.jwtSecret, "jwt-secret", "", "secret used to sign bearer tokens")
	f.set.DurationVar(&f.tokenTTL, "token-ttl", defaultTokenTTL, "bearer token lifetime")
	f.set.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	return f
}

// ReadConfig layers defaults, a JSON file, a .env file, the environment and
// finally explicitly set command-line flags, each overriding the previous.
func ReadConfig(args []string) (*Config, error) {
	f := newFlags("tasks")
	if err := f.set.Parse(args); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	configPath := f.configFile
	if configPath == "" {
		configPath = os.Getenv("CONFIG")
	}
	if jsonConfig := loadJSONConfig(configPath); jsonConfig != nil {
		cfg = jsonConfig
	}

	if f.envFile != "" {
		if err := godotenv.Load(f.envFile); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to load env file", "path", f.envFile, "error", err)
		}
	}

	cfg = applyEnvOverrides(cfg)
	cfg = applyFlagOverrides(cfg, f)

	return cfg, nil
}

func loadJSONConfig(path string) *Config {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn(errors.ErrConfigFileReadFailed.Error(), "path", path, "error", err)
		return nil
	}

	// Missing keys keep their defaults.
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		slog.Warn(errors.ErrConfigParseFailed.Error(), "path", path, "error", err)
		return nil
	}

	slog.Info("json config loaded", "path", path)
	return cfg
}

func applyEnvOverrides(cfg *Config) *Config {
	if addr := os.Getenv("ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err != nil {
			slog.Warn(errors.ErrConfigInvalidFormat.Error(), "var", "PORT", "value", port)
		} else if p < 1 || p > 65535 {
			slog.Warn(errors.ErrConfigInvalidFormat.Error(), "var", "PORT", "value", p, "reason", "port must be between 1 and 65535")
		} else {
			cfg.Port = p
		}
	}
	if storage := os.Getenv("STORAGE"); storage != "" {
		cfg.Storage = storage
	}
	if dbStr := os.Getenv("DB_STR"); dbStr != "" {
		cfg.DBStr = dbStr
	}
	if migratePath := os.Getenv("MIGRATE_PATH"); migratePath != "" {
		cfg.MigratePath = migratePath
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}
	if ttl := os.Getenv("TOKEN_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err != nil || d <= 0 {
			slog.Warn(errors.ErrConfigInvalidFormat.Error(), "var", "TOKEN_TTL", "value", ttl)
		} else {
			cfg.TokenTTL = d
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.LogFormat = format
	}
	if output := os.Getenv("LOG_OUTPUT"); output != "" {
		cfg.LogOutput = output
	}
	if file := os.Getenv("LOG_FILE"); file != "" {
		cfg.LogFile = file
	}

	if cfg.DBStr == defaultDBStr {
		dbUser := os.Getenv("DB_USER")
		dbPassword := os.Getenv("DB_PASSWORD")
		dbName := os.Getenv("DB_NAME")
		dbHost := os.Getenv("DB_HOST")
		dbPort := os.Getenv("DB_PORT")
		if dbUser != "" && dbPassword != "" && dbName != "" && dbHost != "" && dbPort != "" {
			cfg.DBStr = fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable", dbUser, dbPassword, dbHost, dbPort, dbName)
		}
	}

	return cfg
}

func applyFlagOverrides(cfg *Config, f *cliFlags) *Config {
	changed := f.set.Changed

	if changed("addr") {
		cfg.Addr = f.addr
	}
	if changed("port") {
		cfg.Port = f.port
	}
	if changed("storage") {
		cfg.Storage = f.storage
	}
	if f.dbDsn != "" {
		cfg.DBStr = f.dbDsn
	} else if changed("dbstr") {
		cfg.DBStr = f.dbStr
	}
	if changed("migratepath") {
		cfg.MigratePath = f.migratePath
	}
	if changed("jwt-secret") {
		cfg.JWTSecret = f.jwtSecret
	}
	if changed("token-ttl") {
		cfg.TokenTTL = f.tokenTTL
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}

	return cfg
}
