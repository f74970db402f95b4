package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chat-API Metrics
var (
	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serveme",
			Subsystem: "chat_api",
			Name:      "messages_sent_total",
			Help:      "Total messages accepted by the delivery pipeline",
		},
		[]string{"message_type"},
	)

	AttachmentUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serveme",
			Subsystem: "chat_api",
			Name:      "attachment_uploads_total",
			Help:      "Total attachment uploads",
		},
		[]string{"content_type", "status"},
	)

	AttachmentBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serveme",
			Subsystem: "chat_api",
			Name:      "attachment_bytes_total",
			Help:      "Total attachment bytes uploaded",
		},
		[]string{"content_type"},
	)

	NotificationsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serveme",
			Subsystem: "chat_api",
			Name:      "notifications_created_total",
			Help:      "Total notifications fanned out",
		},
		[]string{"type"},
	)

	PushRegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serveme",
			Subsystem: "chat_api",
			Name:      "push_registrations_total",
			Help:      "Push registration attempts by outcome",
		},
		[]string{"outcome"},
	)

	ActiveSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "serveme",
			Subsystem: "chat_api",
			Name:      "active_subscriptions",
			Help:      "Live sync subscriptions by scope kind",
		},
		[]string{"scope"},
	)

	FeedEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serveme",
			Subsystem: "chat_api",
			Name:      "feed_events_total",
			Help:      "Change feed events by disposition",
		},
		[]string{"disposition"},
	)
)

// RecordMessageSent records a successfully persisted message.
func RecordMessageSent(messageType string) {
	MessagesSentTotal.WithLabelValues(messageType).Inc()
}

// RecordAttachmentUpload records an attachment upload attempt.
func RecordAttachmentUpload(contentType, status string, bytes int64) {
	AttachmentUploadsTotal.WithLabelValues(contentType, status).Inc()
	if status == "success" {
		AttachmentBytesTotal.WithLabelValues(contentType).Add(float64(bytes))
	}
}

// RecordNotificationCreated records a notification fan-out.
func RecordNotificationCreated(notificationType string) {
	NotificationsCreatedTotal.WithLabelValues(notificationType).Inc()
}

// RecordPushRegistration records a push registration outcome.
func RecordPushRegistration(outcome string) {
	PushRegistrationsTotal.WithLabelValues(outcome).Inc()
}

// RecordFeedEvent records a merge disposition (applied or duplicate).
func RecordFeedEvent(disposition string) {
	FeedEventsTotal.WithLabelValues(disposition).Inc()
}
