package model

import "time"

// ChatAnalytics summarizes activity in one group over a time range.
type ChatAnalytics struct {
	GroupID        string         `json:"groupId"`
	From           time.Time      `json:"from"`
	To             time.Time      `json:"to"`
	TotalMessages  int64          `json:"totalMessages"`
	UniqueSenders  int64          `json:"uniqueSenders"`
	MessagesByType map[string]int `json:"messagesByType"`
	TotalReactions int64          `json:"totalReactions"`
}

// NotificationAnalytics summarizes notification delivery over a time range.
type NotificationAnalytics struct {
	From             time.Time      `json:"from"`
	To               time.Time      `json:"to"`
	Total            int64          `json:"total"`
	CountsByStatus   map[string]int `json:"countsByStatus"`
	CountsByType     map[string]int `json:"countsByType"`
	CountsByPriority map[string]int `json:"countsByPriority"`
	ReadRate         float64        `json:"readRate"`
}

// MonitorResponse is the hub health snapshot served by the monitor endpoint.
type MonitorResponse struct {
	Status      string          `json:"status"`
	Connections ConnectionStats `json:"connections"`
	Rooms       []RoomStats     `json:"rooms"`
}

// ConnectionStats aggregates live connection counts.
type ConnectionStats struct {
	TotalConnected int `json:"totalConnected"`
	TotalRooms     int `json:"totalRooms"`
}

// RoomStats describes one live room.
type RoomStats struct {
	GroupID     string   `json:"groupId"`
	Connections int      `json:"connections"`
	ActiveUsers []string `json:"activeUsers"`
	TypingUsers []string `json:"typingUsers"`
}
