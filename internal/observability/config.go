package observability

import (
	"strings"

	"github.com/smallbiznis/catalog/internal/config"
)

// Config is the resolved telemetry setup shared by the logger, tracer and
// gin engine.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

// LoadConfig resolves telemetry settings against the service identity.
// DEPLOYMENT_ENV and SERVICE_VERSION override ENVIRONMENT and APP_VERSION.
func LoadConfig(cfg config.Config) Config {
	tel := cfg.Telemetry

	out := Config{
		ServiceName:          firstNonEmpty(cfg.AppName, "catalog"),
		Environment:          firstNonEmpty(tel.DeploymentEnv, cfg.Environment),
		Version:              firstNonEmpty(tel.ServiceVersion, cfg.AppVersion),
		LogLevel:             firstNonEmpty(tel.LogLevel, "info"),
		LogFormat:            firstNonEmpty(tel.LogFormat, "json"),
		OtelEnabled:          tel.OtelEnabled,
		OtelExporterEndpoint: strings.TrimSpace(tel.OtelEndpoint),
		OtelExporterProtocol: firstNonEmpty(tel.OtelProtocol, "grpc"),
		OtelSamplingRatio:    tel.OtelSamplingRatio,
	}
	switch {
	case out.OtelSamplingRatio < 0:
		out.OtelSamplingRatio = 0
	case out.OtelSamplingRatio > 1:
		out.OtelSamplingRatio = 1
	}
	return out
}

func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
