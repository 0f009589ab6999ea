package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// upsert paths: insert, update, retry_update
var upsertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ledger_upserts_total",
	Help: "Accounting transaction upserts by the path they took.",
}, []string{"path"})
