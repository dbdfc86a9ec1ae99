package instrumentation

import (
	"fmt"
	"time"
)

// Config holds the configuration for OpenTelemetry instrumentation.
type Config struct {
	// ServiceName is the name of the service (default: meetsched)
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// ServiceInstanceID is the unique instance identifier (default: hostname)
	ServiceInstanceID string

	// Enabled determines if instrumentation is active. A disabled provider
	// hands out a Metrics value whose methods do nothing.
	Enabled bool

	// MetricsExporter specifies the metrics exporter type
	// Options: "prometheus", "otlp", "stdout" (default: "prometheus")
	MetricsExporter string

	// TracingExporter specifies the tracing exporter type
	// Options: "otlp", "stdout", "none" (default: "none")
	TracingExporter string

	// OTLPEndpoint is the OTLP collector endpoint without scheme,
	// e.g. "localhost:4318".
	OTLPEndpoint string

	// OTLPInsecure disables TLS for OTLP export. Local development only.
	OTLPInsecure bool

	// TraceSamplingRate is the sampling rate for traces (0.0 to 1.0)
	TraceSamplingRate float64

	// DetailedLabels adds the account domain to tool metrics. Full account
	// addresses are never used as label values.
	DetailedLabels bool

	// AuditLogging configures audit logging behavior.
	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig holds configuration for audit logging.
type AuditLoggingConfig struct {
	// Enabled determines if audit logging is active.
	Enabled bool

	// IncludePII logs full account addresses instead of anonymized
	// identifiers.
	IncludePII bool
}

// DefaultConfig returns an enabled Config with the Prometheus exporter and
// tracing off.
func DefaultConfig() Config {
	return Config{
		ServiceName:       "meetsched",
		ServiceVersion:    "unknown",
		Enabled:           true,
		MetricsExporter:   ExporterPrometheus,
		TracingExporter:   ExporterNone,
		TraceSamplingRate: 0.1,
		AuditLogging: AuditLoggingConfig{
			Enabled: true,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}

	validMetricsExporters := map[string]bool{ExporterPrometheus: true, ExporterOTLP: true, ExporterStdout: true}
	if c.MetricsExporter != "" && !validMetricsExporters[c.MetricsExporter] {
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	validTracingExporters := map[string]bool{ExporterOTLP: true, ExporterStdout: true, ExporterNone: true}
	if c.TracingExporter != "" && !validTracingExporters[c.TracingExporter] {
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	if c.TracingExporter == ExporterOTLP && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP endpoint is required when using OTLP tracing exporter")
	}
	if c.MetricsExporter == ExporterOTLP && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP endpoint is required when using OTLP metrics exporter")
	}

	return nil
}

// Constants for metric label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	// Token refresh and mirror sync results
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"

	// Google service names
	ServiceCalendar = "calendar"
	ServicePeople   = "people"
	ServiceOAuth2   = "oauth2"

	// Google API operations
	OperationFreeBusy = "freebusy"
	OperationList     = "list"
	OperationGet      = "get"
	OperationCreate   = "create"
	OperationPatch    = "patch"
	OperationDelete   = "delete"
	OperationSearch   = "search"

	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"

	DefaultMetricInterval = 10 * time.Second
)
