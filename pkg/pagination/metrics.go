package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for page chain traversal.
var (
	pagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotify_pages_fetched_total",
		Help: "Total pages fetched by following next/previous links, by pagination kind",
	}, []string{"kind"}) // "offset", "cursor"

	pageFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotify_page_fetch_errors_total",
		Help: "Total failed page fetches by pagination kind",
	}, []string{"kind"})

	drains = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotify_page_drains_total",
		Help: "Total eager drains of a page chain by pagination kind and result",
	}, []string{"kind", "result"}) // result: "ok", "error"
)
