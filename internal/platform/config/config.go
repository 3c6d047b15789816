package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string

	// JWTSecret verifies inbound bearer tokens on the HTTP surface.
	JWTSecret string

	// TokenSecret seals signing-session tokens; TokenTTL bounds their life.
	TokenSecret string
	TokenTTL    time.Duration

	// IdentitySalt feeds the voter identity hash. Changing it orphans every
	// stored hash, so treat it as immutable per deployment.
	IdentitySalt string

	PhoneSignBaseURL string
	AppSignBaseURL   string

	OCSPResponderURL   string
	OCSPIssuerCertPath string

	MigrationsPath string

	EnableAutoClose  bool
	EnableSwaggerUI  bool
	ProviderTimeout  time.Duration
	OCSPFetchTimeout time.Duration
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "agora"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	migrations := os.Getenv("MIGRATIONS_PATH")
	if migrations == "" {
		migrations = "migrations"
	}

	return Config{
		ServiceName: service,
		HTTPPort:    port,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		TokenSecret: os.Getenv("SIGNING_TOKEN_SECRET"),
		TokenTTL:    envDuration("SIGNING_TOKEN_TTL", 5*time.Minute),

		IdentitySalt: os.Getenv("IDENTITY_HASH_SALT"),

		PhoneSignBaseURL: os.Getenv("PHONE_SIGN_BASE_URL"),
		AppSignBaseURL:   os.Getenv("APP_SIGN_BASE_URL"),

		OCSPResponderURL:   os.Getenv("OCSP_RESPONDER_URL"),
		OCSPIssuerCertPath: os.Getenv("OCSP_ISSUER_CERT_PATH"),

		MigrationsPath: migrations,

		EnableAutoClose:  envBool("ENABLE_AUTO_CLOSE", true),
		EnableSwaggerUI:  envBool("ENABLE_SWAGGER_UI", true),
		ProviderTimeout:  envDuration("PROVIDER_TIMEOUT", 30*time.Second),
		OCSPFetchTimeout: envDuration("OCSP_FETCH_TIMEOUT", 10*time.Second),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
		return parsed
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
