package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string

	// PostgresDSN selects the SQL-backed ledger when non-empty; the in-memory
	// ledger is used otherwise.
	PostgresDSN string

	// DeployDescriptorPath locates the ledger deployment descriptor. A missing
	// file is recoverable: the registry reports unavailable instead of failing
	// startup.
	DeployDescriptorPath string

	// ZonesFile optionally overrides the built-in geofence zone set.
	ZonesFile string

	// Identities seeds the signing provider. Empty means no signing capability
	// is installed and registrations report provider_unavailable.
	Identities []string

	Redis RedisConfig
	Kafka KafkaConfig
}

// RedisConfig controls the optional dashboard read cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig controls the optional registration event publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// DashboardCacheTTL bounds staleness of cached dashboard record reads.
var DashboardCacheTTL = 30 * time.Second

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("VISITID_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	descriptor := os.Getenv("VISITID_DEPLOY_DESCRIPTOR")
	if descriptor == "" {
		descriptor = "deploy-descriptor.json"
	}

	topic := os.Getenv("VISITID_KAFKA_TOPIC")
	if topic == "" {
		topic = "registry.registrations"
	}

	var brokers []string
	if raw := os.Getenv("VISITID_KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	var identities []string
	if raw := os.Getenv("VISITID_IDENTITIES"); raw != "" {
		identities = strings.Split(raw, ",")
	}

	return Server{
		Addr:                 addr,
		JWTSigningKey:        jwtSigningKey,
		PostgresDSN:          os.Getenv("VISITID_POSTGRES_DSN"),
		DeployDescriptorPath: descriptor,
		ZonesFile:            os.Getenv("VISITID_ZONES_FILE"),
		Identities:           identities,
		Redis: RedisConfig{
			URL:          os.Getenv("VISITID_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{Brokers: brokers, Topic: topic},
	}
}
