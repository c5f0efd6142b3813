// Package config loads the configuration of the ADA audit tools.
//
// # Configuration Sources
//
// Values are layered, later sources winning:
//
//	1. Default()
//	2. A YAML file (ADA_CONFIG, config.yaml or configs/config.yaml)
//	3. Environment variables with the ADA_ prefix
//
// Commands call godotenv before Load, so a .env file next to the binary feeds
// step 3.
//
// # Environment Variables
//
//	ADA_SERVER_PORT=8080
//	ADA_LOGGING_LEVEL=debug
//	ADA_AUDIT_SCHOOL_YEAR=2025-2026
//	ADA_AUDIT_DOWNLOADS_DIR=/home/ops/Downloads
//	ADA_DATABASE_DSN=postgres://ada@localhost/ada?sslmode=disable
//	ADA_CACHE_REDIS_ADDR=localhost:6379
//
// # Path Management
//
// Paths resolves every directory the tools read or write relative to ADA_HOME, or
// to the executable when ADA_HOME is unset:
//
//	paths, err := config.GetPaths()
//	profile := paths.ProfilePath("district-default")
package config
