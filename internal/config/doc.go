// Package config handles configuration loading for nutrition-gateway.
//
// # Configuration File
//
// The CLI looks for the file in this order:
//
//  1. Path from the NUTRITION_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/nutrition/gateway.yaml
//  3. ~/.config/nutrition/gateway.yaml
//
// Files ending in .toml are read as TOML; anything else as YAML.
//
// # Environment Variable Expansion
//
//	auth:
//	  jwt_secret: "${NUTRITION_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: ":8080"
//	  shutdown_timeout: "5s"
//
//	database:
//	  path: "/var/lib/nutrition/gateway.db"
//
//	auth:
//	  jwt_secret: "${NUTRITION_JWT_SECRET}"  # base64, at least 32 bytes decoded
//	  jwt_expiration_ms: 86400000
//	  bcrypt_cost: 10
//	  routes:
//	    public: ["/api/auth/**", "/api/test/**", "/health/**", "/metrics"]
//	    restricted:
//	      - prefix: "/api/admin/**"
//	        role: "ADMIN"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// Each route list that is absent takes the default shown above; an explicit
// empty list stays empty. When metrics are enabled, metrics.path is public
// whether or not it is listed.
package config
