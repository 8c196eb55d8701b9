// Package metrics defines the Prometheus instruments for print runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Workflow metrics
var (
	// WorkflowRunsTotal counts finished print runs by outcome (passed/failed)
	WorkflowRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mythra_print_runs_total",
			Help: "Total print workflow runs by status",
		},
		[]string{"status"},
	)

	// WorkflowActive is 1 while a run holds the device
	WorkflowActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mythra_print_runs_active",
			Help: "Print workflow runs currently executing",
		},
	)

	// StepDuration tracks command plus wait time per workflow state
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mythra_print_step_duration_seconds",
			Help:    "Print workflow step duration (command and wait) in seconds",
			Buckets: []float64{.1, .5, 1, 2, 3, 5, 10, 30, 60},
		},
		[]string{"state"},
	)
)

// Device bridge metrics
var (
	// DeviceCommandsTotal counts adb invocations by command and status (ok/error)
	DeviceCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mythra_print_device_commands_total",
			Help: "Total adb commands by command and status",
		},
		[]string{"command", "status"},
	)

	// DeviceCommandDuration tracks adb invocation latency in seconds
	DeviceCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mythra_print_device_command_duration_seconds",
			Help:    "adb command duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"command"},
	)

	// SessionBusyTotal counts runs rejected because the device lock was held
	SessionBusyTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mythra_print_session_busy_total",
			Help: "Print requests rejected because the device was busy",
		},
	)
)
