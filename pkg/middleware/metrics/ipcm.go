package metrics

// ObserveOperation counts one manager operation under its outcome.
func ObserveOperation(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ipcmOperations.WithLabelValues(op, result).Inc()
}

func SetInstances(n int) { ipcmInstances.Set(float64(n)) }
func SetFlows(n int)     { ipcmFlows.Set(float64(n)) }

// AddSDUBytes records payload bytes moved in direction ("post", "read", "write").
func AddSDUBytes(direction string, n int) {
	if n > 0 {
		ipcmSDUBytes.WithLabelValues(direction).Add(float64(n))
	}
}
