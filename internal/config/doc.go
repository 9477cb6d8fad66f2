// Package config loads the gateway configuration.
//
// Configuration comes from an optional YAML file in which ${VAR} references
// are expanded from the environment, followed by MCP_GATEWAY_* environment
// overrides for the settings operators most often change per deployment.
// Anything left unset keeps its default.
package config
