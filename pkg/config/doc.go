// Package config provides application configuration management.
//
// # Overview
//
// Configuration starts from Default, is overlaid by the YAML file named in
// CHEFHUB_CONFIG_FILE when set, then by CHEFHUB_* environment variables,
// and is validated before use.
//
// # Environment Variables
//
// Server settings:
//
//	CHEFHUB_HOST="0.0.0.0"
//	CHEFHUB_PORT="8080"
//	CHEFHUB_READ_TIMEOUT="15s"
//	CHEFHUB_CORS_ORIGINS="https://app.example.com,https://admin.example.com"
//
// Database and cache:
//
//	CHEFHUB_DB_DRIVER="postgres"  # postgres or sqlite3
//	CHEFHUB_DB_DSN="postgres://localhost/chefhub?sslmode=disable"
//	CHEFHUB_REDIS_URL="redis://localhost:6379/0"  # empty disables caching
//
// Authentication and payments:
//
//	CHEFHUB_TOKEN_SECRET="..."  # at least 32 characters
//	CHEFHUB_OIDC_ISSUER_URL="https://accounts.example.com"
//	CHEFHUB_OIDC_CLIENT_ID="chefhub"
//	CHEFHUB_PAYMENT_CALLBACK_SECRET="..."
//	CHEFHUB_PAYMENT_ENDPOINT_URL="https://payments.example.com/hooks"
//	CHEFHUB_PAYMENT_ENDPOINT_SECRET="..."
//
// Enrollment:
//
//	CHEFHUB_PENDING_TTL="1h"
//	CHEFHUB_SWEEP_SCHEDULE="@every 5m"
//
// Audit trail:
//
//	CHEFHUB_AUDIT_ENABLED="true"
//	CHEFHUB_AUDIT_RETENTION="2160h"  # 0 keeps events forever
//	CHEFHUB_AUDIT_CLEANUP_SCHEDULE="@daily"
//
// Observability settings:
//
//	CHEFHUB_LOG_LEVEL="info"  # debug, info, warn, error
//	CHEFHUB_LOG_FORMAT="json"  # json or text
//	CHEFHUB_METRICS_ENABLED="true"
//	CHEFHUB_OTEL_ENABLED="true"
//	CHEFHUB_OTEL_ENDPOINT="otel-collector:4317"
//
// # YAML File
//
//	server:
//	  port: "9000"
//	payments:
//	  endpoints:
//	    - name: payments
//	      url: https://payments.example.com/hooks
//	      secret: s3cr3t
//	      events: [payment.requested]
//	enrollment:
//	  pending_ttl: 30m
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	srv := &http.Server{Addr: cfg.Server.Addr()}
package config
