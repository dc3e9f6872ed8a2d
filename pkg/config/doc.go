// Package config loads the service configuration from environment variables.
//
// Variables are bound with cleanenv struct tags and every section is checked
// by a Validate method built from the Require* helpers, so a misconfigured
// deployment fails at start-up with every problem listed at once:
//
//	cfg, err := config.Load()
//	if err != nil {
//		// configuration validation failed:
//		//   - RBAC_PERSISTENCE: must be one of [memory file mongo], got "postgres"
//		//   - RBAC_PORT: port must be between 1 and 65535, got 0
//	}
//
// # Variables
//
//	RBAC_PORT               HTTP listen port (4000)
//	RBAC_BASE_PATH          mount point of the admin API (/api/admin)
//	RBAC_RATE_LIMIT         requests per client IP per window (100)
//	RBAC_RATE_WINDOW        rate limit window (1m)
//	RBAC_CORS_ORIGINS       comma separated allowed origins
//	RBAC_PRODUCTION         enables HSTS and strict security headers (false)
//	RBAC_PERSISTENCE        memory, file or mongo (memory)
//	RBAC_DATA_DIR           directory of the file store (./data)
//	RBAC_MONGO_URI          MongoDB connection string
//	RBAC_MONGO_DATABASE     MongoDB database name (rbac)
//	RBAC_MONGO_TIMEOUT      connect and ping timeout (10s)
//	RBAC_BCRYPT_COST        bcrypt cost for password hashes (10)
//	RBAC_STRICT_REFERENCES  reject membership ids that do not exist (false)
//	RBAC_SEED_FILE          YAML fixture loaded by "rbac seed" and at start-up
//	LOG_LEVEL               debug, info, warn or error (info)
//	LOG_FORMAT              text or json (text)
package config
