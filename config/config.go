package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Cloudinary CloudinaryConfig
	Firebase   FirebaseConfig
	OneSignal  OneSignalConfig
	HitPay     HitPayConfig
	Encryption EncryptionConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Logging    LoggingConfig
	Workflow   WorkflowConfig
	Sweeper    SweeperConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// requests per RateWindow per client IP
	RateLimit  int
	RateWindow time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

type FirebaseConfig struct {
	ServiceAccountPath string
}

type OneSignalConfig struct {
	AppID  string
	APIKey string
	APIURL string
}

// HitPayConfig configures the payment-request API. WebhookURL is checked when a
// payment is created, not at startup.
type HitPayConfig struct {
	APIKey         string
	APIURL         string
	WebhookURL     string
	WebhookSalt    string
	RedirectURL    string
	PaymentMethods []string
	Currency       string
	Timeout        time.Duration
}

type EncryptionConfig struct {
	Key          string
	PreviousKeys []string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type LoggingConfig struct {
	Level    string
	Format   string
	FilePath string
}

type WorkflowConfig struct {
	ManagementGroup string
}

type SweeperConfig struct {
	Enabled  bool
	Schedule string
	MinAge   time.Duration
	// payments older than MaxAge are left alone; 0 disables the bound
	MaxAge time.Duration
	Batch  int
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Load reads .env (when present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Env:          getEnv("APP_ENV", "development"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 20*time.Second),
			RateLimit:    getInt("RATE_LIMIT", 100),
			RateWindow:   getDuration("RATE_WINDOW", 60*time.Second),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DATABASE_DSN", "bmr:bmr@tcp(localhost:3306)/bmr?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		JWT: JWTConfig{
			AccessSecret: getEnv("JWT_ACCESS_SECRET", "change-me-in-production"),
			AccessExpiry: getDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			Issuer:       getEnv("JWT_ISSUER", "bmr"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
			APIKey:    os.Getenv("CLOUDINARY_API_KEY"),
			APISecret: os.Getenv("CLOUDINARY_API_SECRET"),
			Folder:    getEnv("CLOUDINARY_FOLDER", "bmr/memberships"),
		},
		Firebase: FirebaseConfig{
			ServiceAccountPath: os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH"),
		},
		OneSignal: OneSignalConfig{
			AppID:  os.Getenv("ONESIGNAL_APP_ID"),
			APIKey: os.Getenv("ONESIGNAL_API_KEY"),
			APIURL: getEnv("ONESIGNAL_API_URL", "https://api.onesignal.com/notifications"),
		},
		HitPay: HitPayConfig{
			APIKey:         os.Getenv("HITPAY_API_KEY"),
			APIURL:         getEnv("HITPAY_API_URL", "https://api.sandbox.hit-pay.com/v1"),
			WebhookURL:     os.Getenv("HITPAY_WEBHOOK_URL"),
			WebhookSalt:    os.Getenv("HITPAY_WEBHOOK_SALT"),
			RedirectURL:    os.Getenv("HITPAY_REDIRECT_URL"),
			PaymentMethods: getList("HITPAY_PAYMENT_METHODS", []string{"paynow_online"}),
			Currency:       getEnv("HITPAY_CURRENCY", "SGD"),
			Timeout:        getDuration("HITPAY_TIMEOUT", 15*time.Second),
		},
		Encryption: EncryptionConfig{
			Key:          os.Getenv("FIELD_ENCRYPTION_KEY"),
			PreviousKeys: getList("FIELD_ENCRYPTION_PREVIOUS_KEYS", nil),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
			LockTTL:  getDuration("REDIS_LOCK_TTL", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: getList("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_TOPIC", "membership-events"),
		},
		Logging: LoggingConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Format:   getEnv("LOG_FORMAT", "json"),
			FilePath: os.Getenv("LOG_FILE"),
		},
		Workflow: WorkflowConfig{
			ManagementGroup: getEnv("MANAGEMENT_GROUP", "Management"),
		},
		Sweeper: SweeperConfig{
			Enabled:  getBool("PAYMENT_SWEEPER_ENABLED", true),
			Schedule: getEnv("PAYMENT_SWEEPER_SCHEDULE", "*/10 * * * *"),
			MinAge:   getDuration("PAYMENT_SWEEPER_MIN_AGE", 15*time.Minute),
			MaxAge:   getDuration("PAYMENT_SWEEPER_MAX_AGE", 7*24*time.Hour),
			Batch:    getInt("PAYMENT_SWEEPER_BATCH", 50),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
