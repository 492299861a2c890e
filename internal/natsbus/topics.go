package natsbus

import "fmt"

// Topic patterns for dashboard events published on NATS.

func TopicDashboardActivity(sessionID string) string {
	return fmt.Sprintf("events.dashboard.%s.activity", sessionID)
}

func TopicDashboardConnection(sessionID string) string {
	return fmt.Sprintf("events.dashboard.%s.connection", sessionID)
}

// TopicDashboardAll matches every dashboard event of every session.
const TopicDashboardAll = "events.dashboard.>"
