// Package metrics registers the Prometheus collectors recipebox exposes on /metrics.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"recipebox/db"
)

var (
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recipebox_store_query_duration_seconds",
			Help:    "Duration of document store calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipebox_store_query_errors_total",
			Help: "Total number of failed document store calls",
		},
		[]string{"operation", "error_type"},
	)

	IngestedRecipes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipebox_ingested_recipes_total",
			Help: "Recipes written by catalog ingestion",
		},
		[]string{"result"}, // inserted, updated
	)

	FavoriteChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipebox_favorite_changes_total",
			Help: "Favorite add and remove calls that changed state",
		},
		[]string{"action"},
	)

	RecipeCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipebox_recipe_cache_lookups_total",
			Help: "Recipe cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipebox_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recipebox_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordStoreCall observes one repository call.
func RecordStoreCall(operation string, duration time.Duration, err error) {
	StoreQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreQueryErrors.WithLabelValues(operation, errorType(err)).Inc()
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return "not_found"
	case errors.Is(err, db.ErrUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}

func RecordIngest(inserted, updated int) {
	IngestedRecipes.WithLabelValues("inserted").Add(float64(inserted))
	IngestedRecipes.WithLabelValues("updated").Add(float64(updated))
}

func RecordFavoriteChange(action string) {
	FavoriteChanges.WithLabelValues(action).Inc()
}

func RecordCacheLookup(hit bool) {
	if hit {
		RecipeCacheLookups.WithLabelValues("hit").Inc()
		return
	}
	RecipeCacheLookups.WithLabelValues("miss").Inc()
}

// RecordAPIRequest uses the route pattern, not the raw path, to keep label cardinality bounded.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}
