package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var queueItemsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_queue_items_created",
	Help: "Number of review queue items created",
}, []string{"priority"})

var reviewsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_reviews_completed",
	Help: "Number of completed reviews by decision",
}, []string{"decision"})
