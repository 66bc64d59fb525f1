package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/YongWoo-8933/Cafejari-Server/internal/app/observability/metrics"
	"github.com/YongWoo-8933/Cafejari-Server/internal/app/observability/tracer"
)

// ObservabilityShutdownFunc is the function type returned by InitObservability
type ObservabilityShutdownFunc func(context.Context) error

// InitObservability initializes OpenTelemetry and application metrics
func InitObservability(serviceName, metricsAddr string, logger *zap.Logger) (ObservabilityShutdownFunc, error) {
	otelShutdown, err := tracer.InitOtelProviders(serviceName, metricsAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	// Instruments bind to the SDK meter provider installed above.
	metrics.App()
	logger.Info("Observability initialized", zap.String("metrics_addr", metricsAddr))

	return otelShutdown, nil
}
