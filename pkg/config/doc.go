// Package config loads the configuration shared by the bulwark binaries.
//
// # Overview
//
// Settings come from three layers, later ones winning:
//
//  1. built-in defaults (Default)
//  2. a YAML file named by BULWARK_CONFIG_FILE
//  3. BULWARK_* environment variables
//
// # Environment
//
// Server settings:
//
//	BULWARK_HOST="0.0.0.0"
//	BULWARK_PORT="8080"
//	BULWARK_HEALTH_PORT="9090"
//	BULWARK_READ_TIMEOUT="15s"
//	BULWARK_CORS_ALLOWED_ORIGINS="https://admin.example.com"
//
// Storage and cache:
//
//	BULWARK_DATABASE_URL="postgres://localhost/bulwark?sslmode=disable"
//	BULWARK_DATABASE_MAX_CONNS="20"
//	BULWARK_CACHE_BACKEND="redis"  # redis, memory
//	BULWARK_REDIS_URL="redis://localhost:6379/0"
//	BULWARK_LIST_CACHE_TTL="300s"
//
// Tokens and login:
//
//	BULWARK_JWT_SECRET="..."
//	BULWARK_JWT_ACCESS_EXPIRY="15m"
//	BULWARK_JWT_REFRESH_EXPIRY="7d"
//	BULWARK_LOGIN_RATE_LIMIT="10"
//	BULWARK_LOGIN_RATE_WINDOW="1m"
//
// Platform service and reconciler:
//
//	BULWARK_AUTH_SERVICE_URL="http://localhost:8081"
//	BULWARK_CUSTOMER_ADMIN_BYPASS="true"
//	BULWARK_RECONCILE_SCHEDULE="@every 5m"
//	BULWARK_RECONCILE_STALE_AFTER="10m"
//
// Observability:
//
//	BULWARK_LOG_LEVEL="info"
//	BULWARK_LOG_FORMAT="json"  # json, text
//	BULWARK_AUDIT_LOG_FILE="/var/log/bulwark/audit.log"
//	BULWARK_OTEL_ENABLED="false"
//	BULWARK_OTEL_ENDPOINT="localhost:4317"
//
// # Usage
//
//	cfg, err := config.Load("bulwark-auth")
//	if err != nil {
//		log.Fatal(err)
//	}
//	logger := cfg.NewLogger()
package config
