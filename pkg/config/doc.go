// Package config provides application configuration management from a YAML
// file and environment variables.
//
// # Overview
//
// Load starts from built-in defaults, applies the YAML file named by
// SPHINXQL_CONFIG_FILE when set, then applies SPHINXQL_* environment
// variables on top, and validates the result.
//
// # Configuration Structure
//
// Server settings:
//
//	SPHINXQL_HOST="0.0.0.0"
//	SPHINXQL_PORT="8080"
//	SPHINXQL_HEALTH_PORT="9090"
//	SPHINXQL_READ_TIMEOUT="15s"
//	SPHINXQL_SHUTDOWN_TIMEOUT="30s"
//
// searchd settings:
//
//	SPHINXQL_PRIMARY_ADDR="127.0.0.1:9306"
//	SPHINXQL_REPLICA_ADDRS="10.0.0.2:9306,10.0.0.3:9306"
//	SPHINXQL_MAX_CONNS="20"
//	SPHINXQL_TIMEOUT="5s"
//	SPHINXQL_HEALTH_CHECK_SCHEDULE="@every 30s"
//	SPHINXQL_FETCH_META="true"
//
// Cache settings:
//
//	SPHINXQL_CACHE_ENABLED="true"
//	SPHINXQL_L1_CACHE_SIZE="1024"
//	SPHINXQL_CACHE_TTL="5m"
//	SPHINXQL_REDIS_URL="redis://localhost:6379/0"
//
// Rate limit settings (per client IP, shared through redis when configured):
//
//	SPHINXQL_RATE_LIMIT_ENABLED="true"
//	SPHINXQL_RATE_LIMIT_REQUESTS="600"
//	SPHINXQL_RATE_LIMIT_WINDOW="1m"
//	SPHINXQL_RATE_LIMIT_BURST="60"
//	SPHINXQL_TRUSTED_PROXIES="10.0.0.0/8,192.0.2.10"
//
// Observability settings:
//
//	SPHINXQL_LOG_LEVEL="info"  # debug, info, warn, error
//	SPHINXQL_METRICS_ENABLED="true"
//	SPHINXQL_OTEL_ENABLED="true"
//	SPHINXQL_OTEL_ENDPOINT="otel-collector:4317"
//
// The same keys in YAML:
//
//	server:
//	  port: "8080"
//	sphinx:
//	  primary_addr: 127.0.0.1:9306
//	  replica_addrs: [10.0.0.2:9306]
//	cache:
//	  enabled: true
//	  ttl: 5m
//	observability:
//	  log_level: debug
//
// # Reloading
//
// Watch reloads the file on change and hands every valid config to a
// callback. The server uses it to adjust the log level without a restart.
package config
