package share

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sharesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ezyshare_shares_created_total",
			Help: "Shares created, by kind",
		},
		[]string{"kind"},
	)

	shareFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ezyshare_share_failures_total",
			Help: "Share attempts rejected or failed, by reason",
		},
		[]string{"reason"},
	)

	pinVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ezyshare_pin_verifications_total",
			Help: "PIN verification outcomes",
		},
		[]string{"result"},
	)
)

const (
	resultGranted   = "granted"
	resultDenied    = "denied"
	resultMalformed = "malformed"
	resultThrottled = "throttled"
	resultNotFound  = "not_found"
)
