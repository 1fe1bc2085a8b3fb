package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	confirmationEvents  metric.Int64Counter
	orphanConfirmations metric.Int64Counter
	transitionConflicts metric.Int64Counter
	ticketsIssued       metric.Int64Counter
	statusPolls         metric.Int64Counter
	gatewayInitiations  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "tikiti"
	}
	meter := provider.Meter(name)

	confirmationEvents, err := meter.Int64Counter("tikiti_confirmation_events_total")
	if err != nil {
		return nil, err
	}
	orphanConfirmations, err := meter.Int64Counter("tikiti_orphan_confirmations_total")
	if err != nil {
		return nil, err
	}
	transitionConflicts, err := meter.Int64Counter("tikiti_transition_conflicts_total")
	if err != nil {
		return nil, err
	}
	ticketsIssued, err := meter.Int64Counter("tikiti_tickets_issued_total")
	if err != nil {
		return nil, err
	}
	statusPolls, err := meter.Int64Counter("tikiti_status_polls_total")
	if err != nil {
		return nil, err
	}
	gatewayInitiations, err := meter.Int64Counter("tikiti_gateway_initiations_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		confirmationEvents:  confirmationEvents,
		orphanConfirmations: orphanConfirmations,
		transitionConflicts: transitionConflicts,
		ticketsIssued:       ticketsIssued,
		statusPolls:         statusPolls,
		gatewayInitiations:  gatewayInitiations,
	}, nil
}

// RecordConfirmationEvent counts processed payment confirmations.
func (m *Metrics) RecordConfirmationEvent(ctx context.Context, gateway, source, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("gateway", strings.TrimSpace(gateway)),
		attribute.String("source", strings.TrimSpace(source)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.confirmationEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOrphanConfirmation counts confirmations with no matching order.
func (m *Metrics) RecordOrphanConfirmation(ctx context.Context, gateway string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("gateway", strings.TrimSpace(gateway)))
	m.orphanConfirmations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTransitionConflict counts compare-and-swap losses.
func (m *Metrics) RecordTransitionConflict(ctx context.Context, gateway string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("gateway", strings.TrimSpace(gateway)))
	m.transitionConflicts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTicketsIssued counts issued tickets.
func (m *Metrics) RecordTicketsIssued(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.ticketsIssued.Add(ctx, int64(count))
}

// RecordStatusPoll counts unified status lookups.
func (m *Metrics) RecordStatusPoll(ctx context.Context, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("status", strings.TrimSpace(status)))
	m.statusPolls.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordGatewayInitiation counts checkout initiations per gateway.
func (m *Metrics) RecordGatewayInitiation(ctx context.Context, gateway, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("gateway", strings.TrimSpace(gateway)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.gatewayInitiations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"gateway": {},
	"source":  {},
	"status":  {},
	"outcome": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
