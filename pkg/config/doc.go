// Package config loads application configuration with viper.
//
// Values come from built in defaults, an optional config file (apidelta.yaml in the
// working directory, ~/.apidelta or /etc/apidelta, or an explicit --config path) and
// APIDELTA_ environment variables, in increasing order of precedence. Nested keys map to
// environment variables by upper casing and replacing dots with underscores:
//
//	server:
//	  port: "8080"                    # APIDELTA_SERVER_PORT
//	storage:
//	  type: postgres                  # APIDELTA_STORAGE_TYPE
//	  postgres_url: postgres://...    # APIDELTA_STORAGE_POSTGRES_URL
//	  postgres_replica_urls: a,b      # comma separated
//	  s3_enabled: true
//	  redis_url: redis://localhost:6379
//	comparison:
//	  visibility: api                 # api, spi, internal, private, all
//	  include_minor: false
//	watcher:
//	  dir: ./descriptors
//	  reference: release-1
//	  debounce: 500ms
//	  schedule: "*/15 * * * *"        # standard cron
//	observability:
//	  log_level: info
//	  otel_enabled: false
//
// Load validates the result, so a returned Config is ready to use.
package config
