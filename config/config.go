package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	JWTSecret      string
	Redis          RedisConfig
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// ICEConfig lists the STUN/TURN endpoints a client offers to pion for
// NAT traversal. An empty URL list is valid: connections then use host
// candidates only, which is enough for same-LAN calls and tests.
type ICEConfig struct {
	URLs       []string
	Username   string
	Credential string
}

// ClientConfig configures a meshcall client process.
type ClientConfig struct {
	RelayURL       string
	Room           string
	DisplayName    string
	ICE            ICEConfig
	MaxICERestarts int
}

func Load() *Config {
	// Parse allowed origins (comma-separated)
	originsStr := getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	origins := strings.Split(originsStr, ",")

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AllowedOrigins: origins,
		JWTSecret:      getEnv("JWT_SECRET", "change-me-in-production"),
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       0,
		},
	}
}

// LoadClient reads client configuration from the environment.
func LoadClient() *ClientConfig {
	var urls []string
	if s := getEnv("ICE_SERVERS", "stun:stun.l.google.com:19302"); s != "" {
		for _, u := range strings.Split(s, ",") {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
	}

	return &ClientConfig{
		RelayURL:    getEnv("RELAY_URL", "ws://localhost:8080"),
		Room:        getEnv("ROOM", ""),
		DisplayName: getEnv("DISPLAY_NAME", ""),
		ICE: ICEConfig{
			URLs:       urls,
			Username:   getEnv("ICE_USERNAME", ""),
			Credential: getEnv("ICE_CREDENTIAL", ""),
		},
		MaxICERestarts: getEnvInt("MAX_ICE_RESTARTS", 0),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
