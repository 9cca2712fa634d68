package hub

import (
	"sort"

	"github.com/nikspatil0120/eduplatform-sub001/internal/model"
	"github.com/nikspatil0120/eduplatform-sub001/internal/presence"
)

// MonitorService gathers hub statistics for the monitor endpoint.
type MonitorService struct {
	hub     *Hub
	tracker *presence.Tracker
}

// NewMonitorService creates a new monitor service
func NewMonitorService(hub *Hub, tracker *presence.Tracker) *MonitorService {
	return &MonitorService{hub: hub, tracker: tracker}
}

// GetStats gathers and returns all hub statistics
func (ms *MonitorService) GetStats() model.MonitorResponse {
	rooms := ms.getRoomStats()

	totalConnected := 0
	for _, r := range rooms {
		totalConnected += r.Connections
	}

	// Determine overall health status
	status := "healthy"
	if totalConnected == 0 {
		status = "idle"
	}

	return model.MonitorResponse{
		Status: status,
		Connections: model.ConnectionStats{
			TotalConnected: totalConnected,
			TotalRooms:     len(rooms),
		},
		Rooms: rooms,
	}
}

func (ms *MonitorService) getRoomStats() []model.RoomStats {
	var rooms []model.RoomStats

	for _, shard := range ms.hub.shards {
		shard.RLock()
		for groupID, room := range shard.rooms {
			snap := ms.tracker.Snapshot(groupID)
			rooms = append(rooms, model.RoomStats{
				GroupID:     groupID,
				Connections: len(room),
				ActiveUsers: snap.ActiveUsers,
				TypingUsers: snap.TypingUsers,
			})
		}
		shard.RUnlock()
	}

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].GroupID < rooms[j].GroupID })
	return rooms
}
