package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	responseTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ipcm_admin_response_time",
			Help:    "admin http response time.",
			Buckets: []float64{0.005, 0.05, 0.5, 1, 5},
		},
	)

	totalHttpRequestsFromRole = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ipcm_admin_requests_from_role", Help: "admin http requests from role"},
		[]string{"role"},
	)

	totalHttpRequestsToUri = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ipcm_admin_requests_to_uri", Help: "admin http requests to uri"},
		[]string{"code", "uri", "method"},
	)

	totalHttpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ipcm_admin_requests", Help: "admin http requests by code, and method"},
		[]string{"code", "method"},
	)

	ipcmInstances = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "ipcm_instances", Help: "live ipc process instances"},
	)

	ipcmFlows = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "ipcm_flows", Help: "bound flows"},
	)

	ipcmOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ipcm_operations_total", Help: "manager operations by outcome"},
		[]string{"op", "result"},
	)

	ipcmSDUBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ipcm_sdu_bytes_total", Help: "sdu payload bytes by direction"},
		[]string{"direction"},
	)
)

func init() {
	prometheus.MustRegister(
		responseTime,
		totalHttpRequestsFromRole,
		totalHttpRequestsToUri,
		totalHttpRequests,
		ipcmInstances,
		ipcmFlows,
		ipcmOperations,
		ipcmSDUBytes,
	)
}
