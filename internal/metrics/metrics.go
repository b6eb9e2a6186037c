package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "racoon_frames_extracted_total",
		Help: "Total number of frames written by frame extraction",
	})

	ItemsIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "racoon_items_ingested_total",
		Help: "Total number of new items added to datasets",
	})

	DuplicatesDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "racoon_duplicates_deleted_total",
		Help: "Total number of items deleted by duplicate resolution, by policy",
	}, []string{"policy"})

	ObjectsTransferredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "racoon_objects_transferred_total",
		Help: "Total number of bucket objects moved, by direction",
	}, []string{"direction"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "racoon_stage_duration_seconds",
		Help:    "Duration of pipeline stages",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})
)
