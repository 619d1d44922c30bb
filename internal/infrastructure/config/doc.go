// Package config loads and validates Sugarline Core configuration.
//
// Configuration is read from a YAML file, with hardcoded defaults applied
// first and SUGARLINE_* environment variables applied last. Secrets (JWT
// signing key, broker credentials, InfluxDB token) should always come from
// the environment in production.
package config
