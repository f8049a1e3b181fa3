package batch

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gogpu/framegraph/pool"
)

// Metrics exports render and pool statistics to Prometheus. Observe is
// called by the render goroutine after each frame; scrapes read the last
// observed values.
type Metrics struct {
	frames        prometheus.Counter
	objects       prometheus.Gauge
	prepare       *prometheus.GaugeVec
	draws         *prometheus.GaugeVec
	indices       *prometheus.GaugeVec
	pipelineBinds *prometheus.GaugeVec
	resourceBinds *prometheus.GaugeVec
	drawTime      *prometheus.GaugeVec

	poolAllocations *prometheus.GaugeVec
	poolReuses      *prometheus.GaugeVec
	poolIdle        *prometheus.GaugeVec

	names map[PassID]string
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	gauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}
	m := &Metrics{
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Number of frames recorded",
		}),
		objects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "objects",
			Help:      "Render objects in the last frame",
		}),
		prepare:       gauge("prepare_seconds", "CPU time of the last frame preparation phases", "phase"),
		draws:         gauge("pass_draws", "Draws recorded by a pass in the last frame", "pass", "id"),
		indices:       gauge("pass_indices", "Indices drawn by a pass in the last frame", "pass", "id"),
		pipelineBinds: gauge("pass_pipeline_binds", "Pipeline binds of a pass in the last frame", "pass", "id"),
		resourceBinds: gauge("pass_resource_binds", "Resource binds of a pass in the last frame", "pass", "id"),
		drawTime:      gauge("pass_cpu_draw_seconds", "CPU recording time of a pass in the last frame", "pass", "id"),

		poolAllocations: gauge("pool_allocations", "Objects constructed by a pool", "pool"),
		poolReuses:      gauge("pool_reuses", "Objects handed out again by a pool", "pool"),
		poolIdle:        gauge("pool_idle", "Idle objects parked in a pool", "pool"),

		names: make(map[PassID]string),
	}
	for _, c := range []prometheus.Collector{
		m.frames, m.objects, m.prepare, m.draws, m.indices, m.pipelineBinds, m.resourceBinds, m.drawTime,
		m.poolAllocations, m.poolReuses, m.poolIdle,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SetPassName labels pass id in exported series.
func (m *Metrics) SetPassName(id PassID, name string) { m.names[id] = name }

// Observe exports the stats of a finished frame.
func (m *Metrics) Observe(s *RenderStats) {
	m.frames.Inc()
	m.objects.Set(float64(s.Objects))
	m.prepare.WithLabelValues("begin").Set(s.PrepareBegin.Seconds())
	m.prepare.WithLabelValues("draw").Set(s.PrepareDraw.Seconds())
	m.prepare.WithLabelValues("end").Set(s.PrepareEnd.Seconds())
	for _, id := range s.Passes() {
		p, _ := s.Pass(id)
		labels := []string{m.names[id], strconv.FormatUint(uint64(id), 10)}
		m.draws.WithLabelValues(labels...).Set(float64(p.Draws))
		m.indices.WithLabelValues(labels...).Set(float64(p.Indices))
		m.pipelineBinds.WithLabelValues(labels...).Set(float64(p.PipelineBinds))
		m.resourceBinds.WithLabelValues(labels...).Set(float64(p.ResourceBinds))
		m.drawTime.WithLabelValues(labels...).Set(p.CPUDrawTime.Seconds())
	}
}

// ObservePool exports allocator counters under name.
func (m *Metrics) ObservePool(name string, s pool.Stats) {
	m.poolAllocations.WithLabelValues(name).Set(float64(s.Allocations))
	m.poolReuses.WithLabelValues(name).Set(float64(s.Reuses))
	m.poolIdle.WithLabelValues(name).Set(float64(s.Idle))
}
