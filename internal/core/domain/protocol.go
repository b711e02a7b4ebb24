package domain

import (
	"encoding/json"
	"time"
)

// Outbound event names pushed over contractor sockets.
const (
	EventTaskNew              = "task:new"
	EventTaskAssigned         = "task:assigned"
	EventTaskUpdated          = "task:updated"
	EventTaskClaimed          = "task:claimed"
	EventTaskCancelled        = "task:cancelled"
	EventTaskCompleted        = "task:completed"
	EventNotificationSystem   = "notification:system"
	EventNotificationPersonal = "notification:personal"
	EventConnected            = "connected"
	EventPing                 = "ping"
	EventPong                 = "pong"
)

var taskEvents = map[string]bool{
	EventTaskNew:       true,
	EventTaskAssigned:  true,
	EventTaskUpdated:   true,
	EventTaskClaimed:   true,
	EventTaskCancelled: true,
	EventTaskCompleted: true,
}

// IsTaskEvent reports whether name is one of the task:* outbound events.
func IsTaskEvent(name string) bool { return taskEvents[name] }

// TaskFrame carries a task event to live sockets.
type TaskFrame struct {
	Type      string    `json:"type"`
	Task      Task      `json:"task"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTaskFrame rejects event names outside the task:* set so callers cannot
// smuggle arbitrary event types onto the wire.
func NewTaskFrame(event string, task Task) (TaskFrame, error) {
	if !IsTaskEvent(event) {
		return TaskFrame{}, ErrUnknownEventType
	}
	return TaskFrame{Type: event, Task: task, Timestamp: time.Now()}, nil
}

// NotificationFrame carries a system or personal notification.
type NotificationFrame struct {
	Type      string               `json:"type"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Priority  NotificationPriority `json:"priority"`
	Data      map[string]any       `json:"data,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// ConnectedFrame is the handshake sent once after a successful connect.
type ConnectedFrame struct {
	Type         string   `json:"type"`
	ContractorID string   `json:"contractor_id"`
	Rooms        []string `json:"rooms"`
}

// PongFrame answers an application-level ping.
type PongFrame struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Inbound event names accepted from contractor sockets.
const (
	InboundLocationUpdate = "location-update"
	InboundPing           = "ping"
)

// InboundFrame is the tagged envelope decoded off the socket. Unrecognized
// types are rejected at the read loop.
type InboundFrame struct {
	Type     string  `json:"type"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	RadiusKm float64 `json:"radius,omitempty"`
}

// TaskEventMessage is the envelope the CRUD layer publishes onto the intake
// stream after persisting a domain change.
type TaskEventMessage struct {
	Event         string   `json:"event"`
	Task          Task     `json:"task"`
	ContractorIDs []string `json:"contractor_ids"`
}

func (m TaskEventMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}
