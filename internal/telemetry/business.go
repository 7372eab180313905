package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rollsUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bigbag_rolls_uploaded_total",
		Help: "Rolls uploaded by vendors",
	})

	packagesPurchased = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bigbag_roll_packages_purchased_total",
			Help: "Roll packages purchased, by package name",
		},
		[]string{"package"},
	)

	sharesRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bigbag_shop_shares_total",
			Help: "Shop share events, by country",
		},
		[]string{"country"},
	)

	cacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bigbag_cache_requests_total",
			Help: "Cache lookups by result",
		},
		[]string{"result"},
	)

	pushMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bigbag_push_messages_total",
			Help: "Push notifications by outcome",
		},
		[]string{"outcome"},
	)
)

func RollUploaded() { rollsUploaded.Inc() }

func PackagePurchased(name string) { packagesPurchased.WithLabelValues(name).Inc() }

func ShareRecorded(country string) { sharesRecorded.WithLabelValues(country).Inc() }

func ObserveCache(hit bool) {
	if hit {
		cacheRequests.WithLabelValues("hit").Inc()
		return
	}
	cacheRequests.WithLabelValues("miss").Inc()
}

func PushSent(n int)    { pushMessages.WithLabelValues("sent").Add(float64(n)) }
func PushFailed(n int)  { pushMessages.WithLabelValues("failed").Add(float64(n)) }
func PushDropped(n int) { pushMessages.WithLabelValues("dropped").Add(float64(n)) }
