package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Connection carries the MySQL connection parameters shared by the SQL
// session and the mysqldump invocations.
type Connection struct {
	Host          string
	Port          string
	User          string
	Password      string
	MysqldumpPath string
}

// LoadConnection reads the connection parameters from the environment,
// merging a .env file first when one exists next to the binary.
func LoadConnection() Connection {
	// Missing .env is fine, the variables may already be exported.
	_ = godotenv.Load()

	return Connection{
		Host:          os.Getenv("DB_HOST"),
		Port:          envOr("DB_PORT", "3306"),
		User:          os.Getenv("DB_USERNAME"),
		Password:      os.Getenv("DB_PASSWORD"),
		MysqldumpPath: envOr("MYSQLDUMP_PATH", "mysqldump"),
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
