package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv   string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	HTTPPort           string        `mapstructure:"HTTP_PORT"`
	GRPCPort           string        `mapstructure:"GRPC_PORT"`
	PublicBaseURL      string        `mapstructure:"PUBLIC_BASE_URL"`
	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ShutdownTimeout    time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	MaxRequestBodySize int64         `mapstructure:"MAX_REQUEST_BODY_SIZE"`

	DBDriver       string `mapstructure:"DB_DRIVER"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         int    `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	SQLitePath     string `mapstructure:"SQLITE_PATH"`
	MigrationsPath string `mapstructure:"MIGRATIONS_PATH"`

	CartStorage   string `mapstructure:"CART_STORAGE"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	KafkaBrokers       string        `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic         string        `mapstructure:"KAFKA_TOPIC"`
	KafkaGroupID       string        `mapstructure:"KAFKA_GROUP_ID"`
	OutboxPollInterval time.Duration `mapstructure:"OUTBOX_POLL_INTERVAL"`

	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`

	JWTSecret   string        `mapstructure:"JWT_SECRET"`
	JWTTTL      time.Duration `mapstructure:"JWT_TTL"`
	AdminEmails string        `mapstructure:"ADMIN_EMAILS"`

	DownloadTokenTTL time.Duration `mapstructure:"DOWNLOAD_TOKEN_TTL"`
	FilesRoot        string        `mapstructure:"FILES_ROOT"`

	ConfigFile string `mapstructure:"CONFIG_FILE"`
}

var defaults = map[string]any{
	"APP_ENV":               "development",
	"LOG_LEVEL":             "info",
	"HTTP_PORT":             "8080",
	"GRPC_PORT":             "9090",
	"PUBLIC_BASE_URL":       "http://localhost:8080",
	"REQUEST_TIMEOUT":       "30s",
	"SHUTDOWN_TIMEOUT":      "15s",
	"MAX_REQUEST_BODY_SIZE": int64(1 << 20),
	"DB_DRIVER":             "sqlite",
	"DB_HOST":               "localhost",
	"DB_PORT":               5432,
	"DB_USER":               "postgres",
	"DB_PASSWORD":           "postgres",
	"DB_NAME":               "storefront",
	"SQLITE_PATH":           "storefront.db",
	"MIGRATIONS_PATH":       "",
	"CART_STORAGE":          "memory",
	"REDIS_ADDR":            "localhost:6379",
	"REDIS_PASSWORD":        "",
	"REDIS_DB":              0,
	"MONGO_URI":             "mongodb://localhost:27017",
	"MONGO_DATABASE":        "storefront",
	"KAFKA_BROKERS":         "",
	"KAFKA_TOPIC":           "purchase-events",
	"KAFKA_GROUP_ID":        "storefront-cart",
	"OUTBOX_POLL_INTERVAL":  "1s",
	"STRIPE_SECRET_KEY":     "",
	"STRIPE_WEBHOOK_SECRET": "",
	"JWT_SECRET":            "",
	"JWT_TTL":               "24h",
	"ADMIN_EMAILS":          "",
	"DOWNLOAD_TOKEN_TTL":    "24h",
	"FILES_ROOT":            "public",
	"CONFIG_FILE":           "",
}

type Loader struct {
	v *viper.Viper
}

func NewLoader() *Loader {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load reads defaults, the environment and, when CONFIG_FILE is set, that file.
// Environment variables win over the file.
func (l *Loader) Load() (*Config, error) {
	if f := l.v.GetString("CONFIG_FILE"); f != "" {
		l.v.SetConfigFile(f)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", f, err)
		}
	}

	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Watch calls onChange with the re-decoded config whenever the config file changes.
// It is a no-op without CONFIG_FILE.
func (l *Loader) Watch(onChange func(*Config)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.MigrationsPath == "" {
		cfg.MigrationsPath = "./internal/repository/migrations/" + cfg.DBDriver
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver))
	}
	switch c.CartStorage {
	case "memory", "redis", "mongo":
	default:
		errs = append(errs, fmt.Errorf("CART_STORAGE must be memory, redis or mongo, got %q", c.CartStorage))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.StripeWebhookSecret == "" {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.DownloadTokenTTL <= 0 {
		errs = append(errs, errors.New("DOWNLOAD_TOKEN_TTL must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

func (c *Config) AdminEmailList() []string {
	return splitList(c.AdminEmails)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
