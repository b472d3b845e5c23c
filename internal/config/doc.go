// Package config provides the configuration for floorscan.
// It defines the API credentials and endpoints, HTTP server limits, the
// outbound network route and the history store location, and loads them from
// defaults, a YAML file, the environment and CLI flags in that order.
package config
