package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	permitsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clearance_permits_issued_total",
		Help: "Exam permits issued.",
	})

	permitsRevokedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clearance_permits_revoked_total",
		Help: "Exam permits revoked by an officer.",
	})

	permitVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clearance_permit_verifications_total",
		Help: "Permit verification attempts by outcome.",
	}, []string{"outcome"})
)
