package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_sent_total",
		Help: "Messages accepted by the store",
	})

	MessagesEdited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_edited_total",
		Help: "Message edits accepted by the store",
	})

	MessagesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_deleted_total",
		Help: "Messages deleted from the store",
	})

	FeedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_feed_events_total",
		Help: "Change-feed events published",
	}, []string{"kind"})

	RealtimeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_realtime_sessions",
		Help: "Open realtime websocket sessions",
	})

	SyncResyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_sync_resyncs_total",
		Help: "Snapshot reloads after a lost subscription",
	})

	RateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_rate_limit_hits_total",
		Help: "Requests rejected by the rate limiter",
	})
)
