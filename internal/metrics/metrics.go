package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StatusQueries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigia_status_queries_total",
		Help: "Total number of component task status queries",
	})

	StatusQueryErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigia_status_query_errors_total",
		Help: "Total number of failed component task status queries",
	})

	TasksSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigia_tasks_submitted_total",
		Help: "Total number of analysis tasks submitted",
	})

	TasksCanceled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigia_tasks_canceled_total",
		Help: "Total number of pending tasks canceled",
	})

	TasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vigia_tasks_finished_total",
		Help: "Total number of analysis tasks finished, by final status",
	}, []string{"status"})

	TaskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vigia_task_duration_seconds",
		Help:    "Analysis task execution time in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	SchedulesFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigia_schedules_fired_total",
		Help: "Total number of scheduled analyses submitted by cron",
	})

	MeasuresWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigia_live_measures_written_total",
		Help: "Total number of live measures created or updated after analyses",
	})
)
