package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Lock request outcomes.
const (
	LockAcquired   = "acquired"
	LockRefreshed  = "refreshed"
	LockConflict   = "conflict"
	LockOverridden = "overridden"
	LockReleased   = "released"
	LockDenied     = "denied"
)

var (
	lockRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "equiptrack_lock_requests_total",
		Help: "Lock operations by outcome",
	}, []string{"outcome"})
	upsertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "equiptrack_equipment_upserts_total",
		Help: "Equipment upserts by result",
	}, []string{"result"})
	uploadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "equiptrack_attachment_uploads_total",
		Help: "Total number of stored attachments",
	})
	testsOverdue = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "equiptrack_tests_overdue",
		Help: "Applicable equipment tests past their due date at the last scan",
	}, []string{"company_id"})
)

// Register registers Prometheus collectors. Call once per registry at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(lockRequestsTotal, upsertsTotal, uploadsTotal, testsOverdue)
}

// IncLock counts one lock operation with the given outcome.
func IncLock(outcome string) { lockRequestsTotal.WithLabelValues(outcome).Inc() }

// IncUpsert counts one upsert; result is the audit action or "rejected".
func IncUpsert(result string) { upsertsTotal.WithLabelValues(result).Inc() }

// IncUpload increments the stored attachments counter.
func IncUpload() { uploadsTotal.Inc() }

// SetOverdue records the overdue test count for a company.
func SetOverdue(companyID uint, count int) {
	testsOverdue.WithLabelValues(strconv.FormatUint(uint64(companyID), 10)).Set(float64(count))
}
