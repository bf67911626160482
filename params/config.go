package params

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Server struct {
	HTTPAddr    string
	MetricsAddr string
	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string
}

type Storage struct {
	// DBPath is the Pebble database directory for the ledger and trade log.
	DBPath string
	// ListingsFile is the YAML seed of tradable property listings.
	ListingsFile string
}

type Config struct {
	Server  Server
	Storage Storage
	LogFile string
}

func Default() Config {
	return Config{
		Server: Server{
			HTTPAddr:    ":8080",
			MetricsAddr: ":9100",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Storage: Storage{
			DBPath:       "data/ledger.db",
			ListingsFile: "listings.yaml",
		},
		LogFile: "data/marketd.log",
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.Server.HTTPAddr = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Server.MetricsAddr = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("LISTINGS_FILE"); v != "" {
		cfg.Storage.ListingsFile = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}

	return cfg
}
