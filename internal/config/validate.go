package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"graphdb-graphql/internal/naming"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) addError(field, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Hint: hint})
}

func (r *ValidationResult) addWarning(field, message, hint string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: message, Hint: hint})
}

// Validate checks the configuration for errors and returns validation results.
// Only the section of the selected backend is checked.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Graph.validate(result)
	switch c.Graph.Backend {
	case BackendNeo4j:
		c.Neo4j.validate(result)
	case BackendTiDB:
		c.Database.validate(result)
	}
	c.Server.validate(result)
	c.Observability.validate(result)
	validateNamingConfig(result, c.Naming)

	return result
}

func (g *GraphConfig) validate(result *ValidationResult) {
	switch g.Backend {
	case BackendMemory:
		result.addWarning("graph.backend", "memory backend keeps the graph in process and loses it on restart",
			"use neo4j or tidb outside of development")
	case BackendNeo4j, BackendTiDB:
	default:
		result.addError("graph.backend", fmt.Sprintf("unknown backend %q", g.Backend),
			"valid values are: memory, neo4j, tidb")
	}

	if strings.TrimSpace(g.SchemaFile) == "" {
		result.addError("graph.schema_file", "schema_file is required", "point it at the entity type YAML")
	} else if _, err := os.Stat(g.SchemaFile); err != nil {
		result.addError("graph.schema_file", fmt.Sprintf("cannot read schema file: %v", err), "")
	}

	switch {
	case g.MaxMatchRetries < 0:
		result.addError("graph.max_match_retries", "max_match_retries cannot be negative", "")
	case g.MaxMatchRetries > 1:
		result.addError("graph.max_match_retries",
			fmt.Sprintf("max_match_retries %d exceeds the supported bound of 1", g.MaxMatchRetries),
			"a second violation after re-match is reported as a conflict")
	case g.MaxMatchRetries == 0:
		result.addWarning("graph.max_match_retries", "concurrent creates of the same key will fail instead of connecting",
			"set max_match_retries to 1")
	}
}

func (n *Neo4jConfig) validate(result *ValidationResult) {
	parsed, err := url.Parse(n.URI)
	if err != nil || parsed.Host == "" {
		result.addError("neo4j.uri", fmt.Sprintf("invalid Neo4j URI %q", n.URI), "use bolt://host:7687 or neo4j://host:7687")
	} else {
		switch parsed.Scheme {
		case "bolt", "bolt+s", "bolt+ssc", "neo4j", "neo4j+s", "neo4j+ssc":
		default:
			result.addError("neo4j.uri", fmt.Sprintf("unsupported URI scheme %q", parsed.Scheme),
				"valid schemes are: bolt, bolt+s, bolt+ssc, neo4j, neo4j+s, neo4j+ssc")
		}
	}
	if strings.TrimSpace(n.User) == "" {
		result.addError("neo4j.user", "user cannot be empty", "")
	}
	if n.Password == "" {
		result.addWarning("neo4j.password", "no Neo4j password configured",
			"set neo4j.password_file or neo4j.password_prompt")
	}
	if n.MaxConnectionPoolSize < 0 {
		result.addError("neo4j.max_connection_pool_size", "max_connection_pool_size cannot be negative", "")
	}
	validateConnectionWait(result, "neo4j", n.ConnectionTimeout, n.ConnectionRetryInterval)
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	if d.ConnectionString != "" {
		if _, err := d.DSN(); err != nil {
			result.addError("database.dsn", err.Error(), "use user:pass@tcp(host:port)/db")
		}
	} else if d.Port < 1 || d.Port > 65535 {
		result.addError("database.port", fmt.Sprintf("port %d is out of valid range (1-65535)", d.Port), "")
	}

	switch d.TLSMode {
	case "", "false", "true", "skip-verify", "preferred":
	default:
		result.addError("database.tls_mode", fmt.Sprintf("invalid TLS mode %q", d.TLSMode),
			"valid values are: false, true, skip-verify, preferred")
	}

	if d.Pool.MaxOpen < 0 {
		result.addError("database.pool.max_open", "max_open cannot be negative", "")
	}
	if d.Pool.MaxIdle < 0 {
		result.addError("database.pool.max_idle", "max_idle cannot be negative", "")
	}
	if d.Pool.MaxOpen > 0 && d.Pool.MaxIdle > d.Pool.MaxOpen {
		result.addWarning("database.pool.max_idle",
			fmt.Sprintf("max_idle (%d) exceeds max_open (%d)", d.Pool.MaxIdle, d.Pool.MaxOpen),
			"idle connections are capped at max_open")
	}
	if d.Pool.MaxLifetime < 0 {
		result.addError("database.pool.max_lifetime", "max_lifetime cannot be negative", "")
	}
	validateConnectionWait(result, "database", d.ConnectionTimeout, d.ConnectionRetryInterval)
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port < 1 || s.Port > 65535 {
		result.addError("server.port", fmt.Sprintf("port %d is out of valid range (1-65535)", s.Port), "")
	}
	if s.MaxRequestBytes <= 0 {
		result.addError("server.max_request_bytes", "max_request_bytes must be greater than 0", "")
	}
	for field, value := range map[string]time.Duration{
		"server.read_timeout":         s.ReadTimeout,
		"server.write_timeout":        s.WriteTimeout,
		"server.idle_timeout":         s.IdleTimeout,
		"server.shutdown_timeout":     s.ShutdownTimeout,
		"server.health_check_timeout": s.HealthCheckTimeout,
	} {
		if value < 0 {
			result.addError(field, "timeout cannot be negative", "")
		}
	}
	if s.GraphiQLEnabled {
		result.addWarning("server.graphiql_enabled", "GraphiQL is enabled", "disable it in production")
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.addError("observability.logging.level", fmt.Sprintf("invalid log level %q", o.Logging.Level),
			"valid values are: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.addError("observability.logging.format", fmt.Sprintf("invalid log format %q", o.Logging.Format),
			"valid values are: json, text")
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.addError("observability.trace_sample_ratio",
			fmt.Sprintf("trace_sample_ratio %v must be between 0.0 and 1.0", o.TraceSampleRatio), "")
	}

	o.OTLP.validate("observability.otlp", result)
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.addError(prefix+".protocol", fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			"valid values are: grpc, http/protobuf")
	}

	if o.Protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		result.addError(prefix+".endpoint", fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
			"use host:port or a full URL")
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.addError(prefix+".compression", fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			"valid values are: none, gzip")
	}

	if o.RetryMaxAttempts < 0 {
		result.addError(prefix+".retry_max_attempts", "retry_max_attempts cannot be negative", "")
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}

func validateConnectionWait(result *ValidationResult, section string, timeout, retry time.Duration) {
	if timeout < 0 {
		result.addError(section+".connection_timeout", "connection_timeout cannot be negative", "")
	}
	if timeout > 0 && retry <= 0 {
		result.addError(section+".connection_retry_interval",
			"connection_retry_interval must be greater than 0 when connection_timeout is set", "")
	}
}

func validateNamingConfig(result *ValidationResult, cfg naming.Config) {
	for singular, plural := range cfg.PluralOverrides {
		if strings.TrimSpace(singular) == "" || strings.TrimSpace(plural) == "" {
			result.addError("naming.plural_overrides", "override keys and values cannot be empty", "")
			continue
		}
		if naming.IsReservedTypeName(plural) {
			result.addError("naming.plural_overrides",
				fmt.Sprintf("plural override %q for %q is a reserved name", plural, singular), "")
		}
	}
	for plural, singular := range cfg.SingularOverrides {
		if strings.TrimSpace(plural) == "" || strings.TrimSpace(singular) == "" {
			result.addError("naming.singular_overrides", "override keys and values cannot be empty", "")
		}
	}
}
