package monitoring

import (
	"fmt"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// Config holds New Relic configuration
type Config struct {
	LicenseKey string
	AppName    string
	Enabled    bool
}

// NewRelicApp wraps the New Relic application
type NewRelicApp struct {
	*newrelic.Application
	enabled bool
}

// New creates a new New Relic application
func New(cfg Config) (*NewRelicApp, error) {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		// Return disabled app
		return &NewRelicApp{nil, false}, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create New Relic application: %w", err)
	}

	return &NewRelicApp{app, true}, nil
}

// RecordCustomEvent records a custom event
func (nr *NewRelicApp) RecordCustomEvent(eventType string, params map[string]interface{}) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.RecordCustomEvent(eventType, params)
}

// RecordCustomMetric records a custom metric
func (nr *NewRelicApp) RecordCustomMetric(name string, value float64) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.RecordCustomMetric(name, value)
}

// Shutdown gracefully shuts down the New Relic application
func (nr *NewRelicApp) Shutdown(timeout time.Duration) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.Shutdown(timeout)
}

// IsEnabled returns whether New Relic is enabled
func (nr *NewRelicApp) IsEnabled() bool {
	return nr.enabled
}

// Custom event helpers

// RecordRideCreated records ride creation on a route
func (nr *NewRelicApp) RecordRideCreated(originID, destinationID string) {
	nr.RecordCustomEvent("RideCreated", map[string]interface{}{
		"origin_id":      originID,
		"destination_id": destinationID,
		"timestamp":      time.Now().Unix(),
	})
}

// RecordPassengerJoined records a passenger joining a ride
func (nr *NewRelicApp) RecordPassengerJoined(rideID string, passengerCount int) {
	nr.RecordCustomEvent("PassengerJoined", map[string]interface{}{
		"ride_id":         rideID,
		"passenger_count": passengerCount,
	})
}

// RecordSweep records the outcome of a lifecycle sweep
func (nr *NewRelicApp) RecordSweep(kind string, affected int64) {
	nr.RecordCustomMetric(fmt.Sprintf("custom/lifecycle/%s", kind), float64(affected))
}
