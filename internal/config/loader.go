package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported storage backends.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Supported external event sinks.
const (
	SinkAMQP  = "amqp"
	SinkKafka = "kafka"
)

// Config captures environment driven configuration values for the booking service.
type Config struct {
	HTTPAddr       string
	RequestTimeout time.Duration
	CORSOrigins    []string
	LogLevel       string

	Store       string
	SQLitePath  string
	PostgresDSN string

	JWTSecret string
	TokenTTL  time.Duration

	Timezone      *time.Location
	NoShowGrace   time.Duration
	CheckInEarly  time.Duration
	SweepInterval time.Duration
	ReportTTL     time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	EventSinks   []string
	AMQPURL      string
	AMQPQueue    string
	KafkaBrokers []string
	KafkaTopic   string

	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// Load reads a .env file from the working directory when present and then
// parses configuration values from the process environment. Variables already
// set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv parses configuration through getenv, applying defaults for optional
// fields. Every missing or invalid variable is reported in one error.
func FromEnv(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}
	cfg := Config{
		HTTPAddr:       p.str("DESKBOOK_HTTP_ADDR", ":8080"),
		RequestTimeout: p.duration("DESKBOOK_REQUEST_TIMEOUT", 10*time.Second),
		CORSOrigins:    p.list("DESKBOOK_CORS_ORIGINS"),
		LogLevel:       p.str("DESKBOOK_LOG_LEVEL", "info"),

		Store:       strings.ToLower(p.str("DESKBOOK_STORE", StoreSQLite)),
		SQLitePath:  p.str("DESKBOOK_SQLITE_PATH", "./var/deskbooking.db"),
		PostgresDSN: p.str("DESKBOOK_POSTGRES_DSN", ""),

		JWTSecret: p.required("DESKBOOK_JWT_SECRET"),
		TokenTTL:  p.duration("DESKBOOK_TOKEN_TTL", 12*time.Hour),

		Timezone:      p.location("DESKBOOK_TIMEZONE", "Europe/Warsaw"),
		NoShowGrace:   p.duration("DESKBOOK_NO_SHOW_GRACE", 30*time.Minute),
		CheckInEarly:  p.duration("DESKBOOK_CHECKIN_EARLY", 15*time.Minute),
		SweepInterval: p.duration("DESKBOOK_SWEEP_INTERVAL", time.Minute),
		ReportTTL:     p.duration("DESKBOOK_REPORT_TTL", 30*time.Second),

		RedisAddr:     p.str("DESKBOOK_REDIS_ADDR", ""),
		RedisPassword: p.str("DESKBOOK_REDIS_PASSWORD", ""),
		RedisDB:       p.nonNegativeInt("DESKBOOK_REDIS_DB", 0),
		LockTTL:       p.duration("DESKBOOK_LOCK_TTL", 5*time.Second),

		EventSinks:   p.list("DESKBOOK_EVENT_SINK"),
		AMQPURL:      p.str("DESKBOOK_AMQP_URL", ""),
		AMQPQueue:    p.str("DESKBOOK_AMQP_QUEUE", "desk.booking.events"),
		KafkaBrokers: p.list("DESKBOOK_KAFKA_BROKERS"),
		KafkaTopic:   p.str("DESKBOOK_KAFKA_TOPIC", "desk-booking-events"),

		BootstrapAdminEmail:    p.str("DESKBOOK_BOOTSTRAP_ADMIN_EMAIL", ""),
		BootstrapAdminPassword: p.str("DESKBOOK_BOOTSTRAP_ADMIN_PASSWORD", ""),
	}

	switch cfg.Store {
	case StoreSQLite:
	case StorePostgres:
		if cfg.PostgresDSN == "" {
			p.missing = append(p.missing, "DESKBOOK_POSTGRES_DSN")
		}
	default:
		p.invalid = append(p.invalid, "DESKBOOK_STORE")
	}

	for i, sink := range cfg.EventSinks {
		cfg.EventSinks[i] = strings.ToLower(sink)
		switch cfg.EventSinks[i] {
		case SinkAMQP:
			if cfg.AMQPURL == "" {
				p.missing = append(p.missing, "DESKBOOK_AMQP_URL")
			}
		case SinkKafka:
			if len(cfg.KafkaBrokers) == 0 {
				p.missing = append(p.missing, "DESKBOOK_KAFKA_BROKERS")
			}
		default:
			p.invalid = append(p.invalid, "DESKBOOK_EVENT_SINK")
		}
	}

	if cfg.BootstrapAdminEmail != "" && cfg.BootstrapAdminPassword == "" {
		p.missing = append(p.missing, "DESKBOOK_BOOTSTRAP_ADMIN_PASSWORD")
	}

	if len(p.missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(p.missing, ", "))
	}
	if len(p.invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(p.invalid, ", "))
	}
	return cfg, nil
}

// RedisEnabled reports whether desk locks should be shared through Redis.
func (c Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

type parser struct {
	getenv  func(string) string
	missing []string
	invalid []string
}

func (p *parser) value(key string) string {
	return strings.TrimSpace(p.getenv(key))
}

func (p *parser) str(key, fallback string) string {
	if v := p.value(key); v != "" {
		return v
	}
	return fallback
}

func (p *parser) required(key string) string {
	v := p.value(key)
	if v == "" {
		p.missing = append(p.missing, key)
	}
	return v
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := p.value(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		p.invalid = append(p.invalid, key)
		return fallback
	}
	return d
}

func (p *parser) nonNegativeInt(key string, fallback int) int {
	v := p.value(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		p.invalid = append(p.invalid, key)
		return fallback
	}
	return n
}

func (p *parser) list(key string) []string {
	var out []string
	for _, item := range strings.Split(p.value(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (p *parser) location(key, fallback string) *time.Location {
	name := p.str(key, fallback)
	loc, err := time.LoadLocation(name)
	if err != nil {
		p.invalid = append(p.invalid, key)
		return time.UTC
	}
	return loc
}
