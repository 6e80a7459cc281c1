// Package config provides centralized configuration management for routekit.
// It handles loading configuration from multiple sources, validation, and provides
// a type-safe API for accessing configuration values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern ROUTEKIT_<SECTION>_<FIELD>:
//
//	ROUTEKIT_SERVER_PORT=8080
//	ROUTEKIT_LOGGING_LEVEL=debug
//	ROUTEKIT_WEBSOCKET_ALLOWED_ORIGINS=https://app.example.com
//	ROUTEKIT_TELEMETRY_METRIC_EXPORTER=none
//
// ROUTEKIT_CONFIG points at an explicit YAML file. Without it, routekit.yaml and
// configs/routekit.yaml are tried in that order.
//
// # Validation
//
// Struct tags are checked with go-playground/validator after all sources are
// applied. Load returns the first validation failure wrapped with context.
package config
