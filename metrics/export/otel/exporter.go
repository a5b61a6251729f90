package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	goBlog "github.com/MrEthical07/goBlog"
	"github.com/MrEthical07/goBlog/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goBlog.MetricsSnapshot
	AuditDropped() uint64
}

// latencySeries reports one portal histogram as cumulative bucket gauges
// keyed by an "le" attribute, plus the sample count.
type latencySeries struct {
	id      goBlog.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	le      []metric.ObserveOption
}

// Exporter publishes portal metrics as OTel observable instruments.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	counters     map[goBlog.MetricID]metric.Int64ObservableCounter
	latency      []latencySeries
	auditDropped metric.Int64ObservableCounter
}

// NewExporter registers instruments on meter that read from portal.
func NewExporter(meter metric.Meter, portal *goBlog.Portal) (*Exporter, error) {
	if portal == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, portal)
}

// NewExporterFromSource is NewExporter for any snapshot source.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:   source,
		counters: make(map[goBlog.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = c
		observables = append(observables, c)
	}

	for _, def := range internaldefs.HistogramDefs {
		series, err := newLatencySeries(meter, def)
		if err != nil {
			return nil, err
		}
		e.latency = append(e.latency, series)
		observables = append(observables, series.buckets, series.count)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription("Audit events dropped because the dispatcher buffer was full."))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func newLatencySeries(meter metric.Meter, def internaldefs.HistogramDef) (latencySeries, error) {
	s := latencySeries{id: def.ID}
	var err error
	s.buckets, err = meter.Int64ObservableGauge(def.Name+"_bucket",
		metric.WithDescription(def.Help+" Cumulative count per upper bound."))
	if err != nil {
		return s, fmt.Errorf("gauge %s_bucket: %w", def.Name, err)
	}
	s.count, err = meter.Int64ObservableGauge(def.Name+"_count",
		metric.WithDescription(def.Help+" Sample count."))
	if err != nil {
		return s, fmt.Errorf("gauge %s_count: %w", def.Name, err)
	}
	for _, le := range internaldefs.HistogramBucketLabels {
		s.le = append(s.le, metric.WithAttributes(attribute.String("le", le)))
	}
	return s, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for id, c := range e.counters {
		o.ObserveInt64(c, int64(snap.Counters[id]))
	}
	for _, s := range e.latency {
		raw, ok := snap.Histograms[s.id]
		if !ok {
			// Latency histograms disabled on the portal.
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i, le := range s.le {
			o.ObserveInt64(s.buckets, int64(cumulative[i]), le)
		}
		o.ObserveInt64(s.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
