package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
// Make fields public so they can be accessed from other packages.
type AppMetrics struct {
	HTTPRequestsTotal        metric.Int64Counter
	HTTPRequestDuration      metric.Float64Histogram
	ReadingsIngestedTotal    metric.Int64Counter
	ReadingsRejectedTotal    metric.Int64Counter
	PointsAwardedTotal       metric.Int64Counter
	PredictionsUpsertedTotal metric.Int64Counter
	PredictionsDeletedTotal  metric.Int64Counter
	NudgesSentTotal          metric.Int64Counter
	JobRunsTotal             metric.Int64Counter
	JobDurationSeconds       metric.Float64Histogram
}

var (
	// Global instance of AppMetrics (initialized once)
	appMetrics *AppMetrics
	once       sync.Once
)

// App returns the globally initialized AppMetrics instance, initializing it
// on first use. Before the SDK meter provider is installed the instruments
// are backed by the no-op global provider, which keeps tests quiet.
func App() *AppMetrics {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("cafejari-server")
		var err error
		m := &AppMetrics{}

		m.HTTPRequestsTotal, err = meter.Int64Counter(
			"http_requests_total",
			metric.WithDescription("Total number of HTTP requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_requests_total: %v", err)
		}

		m.HTTPRequestDuration, err = meter.Float64Histogram(
			"http_request_duration_seconds",
			metric.WithDescription("Duration of HTTP requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_request_duration_seconds: %v", err)
		}

		m.ReadingsIngestedTotal, err = meter.Int64Counter(
			"occupancy_readings_ingested_total",
			metric.WithDescription("Total number of occupancy readings accepted"),
			metric.WithUnit("{reading}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create occupancy_readings_ingested_total: %v", err)
		}

		m.ReadingsRejectedTotal, err = meter.Int64Counter(
			"occupancy_readings_rejected_total",
			metric.WithDescription("Total number of occupancy readings rejected at the gate"),
			metric.WithUnit("{reading}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create occupancy_readings_rejected_total: %v", err)
		}

		m.PointsAwardedTotal, err = meter.Int64Counter(
			"occupancy_points_awarded_total",
			metric.WithDescription("Total points credited for accepted readings"),
			metric.WithUnit("{point}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create occupancy_points_awarded_total: %v", err)
		}

		m.PredictionsUpsertedTotal, err = meter.Int64Counter(
			"floor_predictions_upserted_total",
			metric.WithDescription("Total number of floor predictions written"),
			metric.WithUnit("{prediction}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create floor_predictions_upserted_total: %v", err)
		}

		m.PredictionsDeletedTotal, err = meter.Int64Counter(
			"floor_predictions_deleted_total",
			metric.WithDescription("Total number of floor predictions removed"),
			metric.WithUnit("{prediction}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create floor_predictions_deleted_total: %v", err)
		}

		m.NudgesSentTotal, err = meter.Int64Counter(
			"activity_nudges_sent_total",
			metric.WithDescription("Total number of follow-up nudges delivered"),
			metric.WithUnit("{nudge}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create activity_nudges_sent_total: %v", err)
		}

		m.JobRunsTotal, err = meter.Int64Counter(
			"background_job_runs_total",
			metric.WithDescription("Total number of background job executions"),
			metric.WithUnit("{run}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create background_job_runs_total: %v", err)
		}

		m.JobDurationSeconds, err = meter.Float64Histogram(
			"background_job_duration_seconds",
			metric.WithDescription("Duration of background job executions in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create background_job_duration_seconds: %v", err)
		}

		appMetrics = m // Assign to global variable
	})
	return appMetrics
}
