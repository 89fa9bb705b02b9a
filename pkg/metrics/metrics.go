// Package metrics exposes the tracker's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bike_duty_cycles_total",
			Help: "Duty cycles run, by whether a base was in range",
		},
		[]string{"at_base"},
	)

	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bike_uploads_total",
			Help: "Upload attempts by kind and result",
		},
		[]string{"kind", "result"},
	)

	UploadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bike_upload_duration_seconds",
			Help:    "Round-trip time of upload requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	ConnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bike_base_connects_total",
			Help: "Base network connection attempts by result",
		},
		[]string{"result"},
	)

	RecordsCleared = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bike_records_cleared_total",
			Help: "Scan records removed after an accepted upload",
		},
	)

	PendingRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bike_pending_records",
			Help: "Scan records waiting for upload",
		},
	)

	NetworksSeen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bike_networks_seen",
			Help: "Networks returned by the most recent scan",
		},
	)

	BatteryPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bike_battery_percent",
			Help: "Most recent battery reading",
		},
	)
)

func init() {
	prometheus.MustRegister(CyclesTotal)
	prometheus.MustRegister(UploadsTotal)
	prometheus.MustRegister(UploadDuration)
	prometheus.MustRegister(ConnectsTotal)
	prometheus.MustRegister(RecordsCleared)
	prometheus.MustRegister(PendingRecords)
	prometheus.MustRegister(NetworksSeen)
	prometheus.MustRegister(BatteryPercent)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveCycle(atBase bool) {
	label := "false"
	if atBase {
		label = "true"
	}
	CyclesTotal.WithLabelValues(label).Inc()
}

// ObserveUpload records one upload of kind "scan" or "status".
func ObserveUpload(kind string, ok bool, seconds float64) {
	result := "failure"
	if ok {
		result = "success"
	}
	UploadsTotal.WithLabelValues(kind, result).Inc()
	UploadDuration.WithLabelValues(kind).Observe(seconds)
}

func ObserveConnect(ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	ConnectsTotal.WithLabelValues(result).Inc()
}

func AddRecordsCleared(n int) {
	RecordsCleared.Add(float64(n))
}

func SetPendingRecords(n int) {
	PendingRecords.Set(float64(n))
}

func SetNetworksSeen(n int) {
	NetworksSeen.Set(float64(n))
}

func SetBatteryPercent(p float64) {
	BatteryPercent.Set(p)
}
