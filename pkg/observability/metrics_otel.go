package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry metric instruments for auth decisions
type OTelMetrics struct {
	gateDecisions metric.Int64Counter
	logins        metric.Int64Counter
}

// NewOTelMetrics creates instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter("github.com/platinummonkey/haven")

	gateDecisions, err := meter.Int64Counter(
		"haven.auth.gate.decisions",
		metric.WithDescription("Decisions taken by authentication and authorization gates"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gate decisions counter: %w", err)
	}

	logins, err := meter.Int64Counter(
		"haven.auth.logins",
		metric.WithDescription("Login attempts by result"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create logins counter: %w", err)
	}

	return &OTelMetrics{gateDecisions: gateDecisions, logins: logins}, nil
}

func (o *OTelMetrics) recordGateDecision(gate, outcome string) {
	if o == nil {
		return
	}
	o.gateDecisions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("gate", gate),
		attribute.String("outcome", outcome),
	))
}

func (o *OTelMetrics) recordLogin(result string) {
	if o == nil {
		return
	}
	o.logins.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("result", result),
	))
}
