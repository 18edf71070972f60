package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nonoo/fbusmon/fbus"
	"github.com/nonoo/fbusmon/log"
	"github.com/nonoo/fbusmon/monitor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsStruct struct {
	reg *prometheus.Registry
	srv *http.Server

	power         *prometheus.GaugeVec
	stations      prometheus.Gauge
	location      *prometheus.GaugeVec
	published     prometheus.Counter
	lastPublish   prometheus.Gauge
	bestChanges   prometheus.Counter
	lastStrongest uint16
}

func statsCounter(stats *fbus.Stats, name, help string, get func(s fbus.StatsSnapshot) int) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "fbusmon",
		Name:      name,
		Help:      help,
	}, func() float64 {
		return float64(get(stats.Get()))
	})
}

func newMetrics(stats *fbus.Stats) *metricsStruct {
	m := &metricsStruct{
		reg: prometheus.NewRegistry(),
		power: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fbusmon",
			Name:      "basestation_power_dbm",
			Help:      "Received level of each listed base station.",
		}, []string{"channel"}),
		stations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fbusmon",
			Name:      "basestations",
			Help:      "Number of listed base stations.",
		}),
		location: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fbusmon",
			Name:      "location",
			Help:      "Serving cell identity by field.",
		}, []string{"field"}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fbusmon",
			Name:      "snapshots_published_total",
			Help:      "Total published snapshots.",
		}),
		lastPublish: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fbusmon",
			Name:      "last_publish_timestamp_seconds",
			Help:      "Time of the last published snapshot.",
		}),
		bestChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fbusmon",
			Name:      "strongest_changes_total",
			Help:      "Total changes of the strongest base station.",
		}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.power, m.stations, m.location, m.published, m.lastPublish, m.bestChanges,
		statsCounter(stats, "rx_bytes_total", "Bytes received from the handset.",
			func(s fbus.StatsSnapshot) int { return s.BytesIn }),
		statsCounter(stats, "tx_bytes_total", "Bytes sent to the handset.",
			func(s fbus.StatsSnapshot) int { return s.BytesOut }),
		statsCounter(stats, "frames_total", "Valid frames received.",
			func(s fbus.StatsSnapshot) int { return s.Frames }),
		statsCounter(stats, "bad_frames_total", "Frames dropped on checksum or length errors.",
			func(s fbus.StatsSnapshot) int { return s.BadFrames }),
		statsCounter(stats, "acks_sent_total", "Acknowledgements sent.",
			func(s fbus.StatsSnapshot) int { return s.AcksSent }),
		statsCounter(stats, "receive_timeouts_total", "Receive calls which timed out.",
			func(s fbus.StatsSnapshot) int { return s.Timeouts }),
	)
	return m
}

func (m *metricsStruct) observe(snap *monitor.Snapshot) {
	m.power.Reset()
	for _, bs := range snap.BaseStations {
		m.power.WithLabelValues(strconv.Itoa(int(bs.Channel))).Set(-float64(bs.Power))
	}
	m.stations.Set(float64(snap.Count()))
	if snap.HasLocation {
		l := snap.Location
		m.location.WithLabelValues("country").Set(float64(l.Country))
		m.location.WithLabelValues("network").Set(float64(l.Network))
		m.location.WithLabelValues("area").Set(float64(l.Area))
		m.location.WithLabelValues("cell").Set(float64(l.Cell))
		m.location.WithLabelValues("channel").Set(float64(l.Channel))
	}
	if bs, ok := snap.Strongest(); ok && bs.Channel != m.lastStrongest {
		if m.lastStrongest != 0 {
			m.bestChanges.Inc()
		}
		m.lastStrongest = bs.Channel
	}
	m.published.Inc()
	m.lastPublish.Set(float64(snap.UpdatedAt.Unix()))
}

func (m *metricsStruct) start(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg}))
	m.srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	log.Print("exporting metrics on ", addr, "/metrics")
	go func() {
		if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err)
		}
	}()
}

func (m *metricsStruct) stop() {
	if m.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = m.srv.Shutdown(ctx)
	m.srv = nil
}
