package heartbeat

import (
	"fmt"
	"time"
)

// Event type names accepted on the event feed.
const (
	TypeHeartbeatStopped  = "HeartbeatStopped"
	TypeHeartbeatRestored = "HeartbeatRestored"
)

// HeartbeatStopped is raised when a monitored endpoint stops sending heartbeats.
type HeartbeatStopped struct {
	EndpointName   string    `json:"endpointName"`
	HostID         string    `json:"hostId,omitempty"`
	Host           string    `json:"host,omitempty"`
	DetectedAt     time.Time `json:"detectedAt,omitempty"`
	LastReceivedAt time.Time `json:"lastReceivedAt,omitempty"`
}

// Text is the notification posted for the event.
func (e HeartbeatStopped) Text() string {
	return fmt.Sprintf("Endpoint %s seems to have stopped sending heartbeats", e.EndpointName)
}

// HeartbeatRestored is raised when a monitored endpoint resumes heartbeats.
type HeartbeatRestored struct {
	EndpointName string    `json:"endpointName"`
	HostID       string    `json:"hostId,omitempty"`
	Host         string    `json:"host,omitempty"`
	RestoredAt   time.Time `json:"restoredAt,omitempty"`
}

func (e HeartbeatRestored) Text() string {
	return fmt.Sprintf("Endpoint `%s` has now resumed sending heartbeats", e.EndpointName)
}
