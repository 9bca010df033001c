// Package metrics provides Prometheus metrics for the identity service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RegistrationsTotal counts successful user registrations.
	RegistrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "identity_registrations_total",
		Help: "Total number of successfully registered users.",
	})

	// AllocationTotal counts display name allocations by strategy
	// (base, suffix, random).
	AllocationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_displayname_allocation_total",
		Help: "Total number of display name allocations, by strategy.",
	}, []string{"strategy"})

	// LoginFailuresTotal counts failed authentication attempts.
	LoginFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "identity_login_failures_total",
		Help: "Total number of failed login attempts.",
	})

	// EventsPurgedTotal counts audit events removed by retention maintenance.
	EventsPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "identity_events_purged_total",
		Help: "Total number of audit events deleted by the retention job.",
	})
)
