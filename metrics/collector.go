// Package metrics exports registry and interceptor activity as Prometheus
// metrics. A Collector is both a registry.Observer and an
// interceptor.DispatchHook:
//
//	c := metrics.NewCollector("modcore")
//	_ = c.Register(prometheus.DefaultRegisterer)
//	r := registry.New(registry.WithObserver(c))
//	r.Dispatcher().AddHook(c)
package metrics

import (
	"context"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/GoCodeAlone/modcore/interceptor"
	"github.com/GoCodeAlone/modcore/registry"
)

// ObserverID is the registry observer id of every Collector.
const ObserverID = "modcore.metrics"

// Collector holds the modcore metrics.
type Collector struct {
	registrations   *prometheus.CounterVec
	unregistrations *prometheus.CounterVec
	lookupMisses    *prometheus.CounterVec
	propertyChanges *prometheus.CounterVec
	components      *prometheus.GaugeVec
	dispatches      *prometheus.CounterVec
	vetoes          *prometheus.CounterVec
}

var (
	_ registry.Observer        = (*Collector)(nil)
	_ interceptor.DispatchHook = (*Collector)(nil)
	_ prometheus.Collector     = (*Collector)(nil)
)

// NewCollector creates the metrics under namespace. They are not registered
// with any Prometheus registerer yet.
func NewCollector(namespace string) *Collector {
	return &Collector{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "registrations_total",
			Help:      "Components registered, by service type",
		}, []string{"service_type"}),
		unregistrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "unregistrations_total",
			Help:      "Components unregistered, by service type",
		}, []string{"service_type"}),
		lookupMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "lookup_misses_total",
			Help:      "Lookups of service types that were never registered",
		}, []string{"service_type"}),
		propertyChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "property_changes_total",
			Help:      "Registration property changes, by service type",
		}, []string{"service_type"}),
		components: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "components",
			Help:      "Live registrations, by service type",
		}, []string{"service_type"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interceptor",
			Name:      "dispatches_total",
			Help:      "Interceptor dispatch outcomes, by phase and outcome",
		}, []string{"phase", "outcome"}),
		vetoes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interceptor",
			Name:      "vetoes_total",
			Help:      "Calls vetoed by an interceptor, by annotation",
		}, []string{"annotation"}),
	}
}

// Register registers every metric with reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	return reg.Register(c)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.all() {
		m.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range c.all() {
		m.Collect(ch)
	}
}

func (c *Collector) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.registrations, c.unregistrations, c.lookupMisses, c.propertyChanges,
		c.components, c.dispatches, c.vetoes,
	}
}

// ObserverID implements registry.Observer.
func (c *Collector) ObserverID() string { return ObserverID }

// OnEvent implements registry.Observer.
func (c *Collector) OnEvent(_ context.Context, event cloudevents.Event) error {
	var data registry.ComponentEventData
	if err := event.DataAs(&data); err != nil {
		return fmt.Errorf("decode %s: %w", event.Type(), err)
	}
	st := data.ServiceType
	switch event.Type() {
	case registry.EventTypeComponentRegistered:
		c.registrations.WithLabelValues(st).Inc()
		c.components.WithLabelValues(st).Inc()
	case registry.EventTypeComponentUnregistered:
		c.unregistrations.WithLabelValues(st).Inc()
		c.components.WithLabelValues(st).Dec()
	case registry.EventTypeLookupMiss:
		c.lookupMisses.WithLabelValues(st).Inc()
	case registry.EventTypePropertyChanged:
		c.propertyChanges.WithLabelValues(st).Inc()
	}
	return nil
}

// OnDispatch implements interceptor.DispatchHook.
func (c *Collector) OnDispatch(ev interceptor.DispatchEvent) {
	phase := ev.Phase.String()
	if ev.Outcome == interceptor.OutcomeNoRegistry {
		phase = "none"
	}
	c.dispatches.WithLabelValues(phase, ev.Outcome.String()).Inc()
	if ev.Outcome == interceptor.OutcomeVetoed {
		c.vetoes.WithLabelValues(ev.Annotation).Inc()
	}
}
