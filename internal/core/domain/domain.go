package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContractorProfile is the slice of contractor identity this core reads at
// connection time. Lifecycle is owned by the account system.
type ContractorProfile struct {
	ID         string
	Name       string
	Skills     []string
	IsActive   bool
	IsVerified bool
}

// Location is a contractor's last reported position plus the radius they are
// willing to serve. At most one is tracked per contractor.
type Location struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
}

// DefaultRadiusKm applies when a location update omits the radius.
const DefaultRadiusKm = 50

type TaskType string

const (
	TaskDelivery    TaskType = "delivery"
	TaskSetup       TaskType = "setup"
	TaskPickup      TaskType = "pickup"
	TaskMaintenance TaskType = "maintenance"
)

type TaskPriority string

const (
	PriorityHigh   TaskPriority = "High"
	PriorityMedium TaskPriority = "Medium"
	PriorityLow    TaskPriority = "Low"
)

// Task is the event payload handed over by the CRUD layer after it has been
// persisted. This core never writes tasks.
type Task struct {
	ID            string       `json:"id"`
	OrderID       string       `json:"order_id"`
	Type          TaskType     `json:"type"`
	Title         string       `json:"title"`
	Description   string       `json:"description,omitempty"`
	Priority      TaskPriority `json:"priority"`
	PaymentAmount float64      `json:"payment_amount"`
	Address       string       `json:"address"`
	Lat           float64      `json:"lat"`
	Lng           float64      `json:"lng"`
	ScheduledFor  time.Time    `json:"scheduled_for"`
}

type NotificationType string

const (
	NotificationTask     NotificationType = "task"
	NotificationSystem   NotificationType = "system"
	NotificationPersonal NotificationType = "personal"
)

type NotificationPriority string

const (
	NotifyCritical NotificationPriority = "critical"
	NotifyHigh     NotificationPriority = "high"
	NotifyNormal   NotificationPriority = "normal"
	NotifyLow      NotificationPriority = "low"
)

// PushPriority maps a task priority onto the three-level push gateway scale.
func PushPriority(p TaskPriority) NotificationPriority {
	switch p {
	case PriorityHigh:
		return NotifyHigh
	case PriorityLow:
		return NotifyLow
	default:
		return NotifyNormal
	}
}

// Notification is the durable per-contractor record written for every
// broadcast, independent of delivery success.
type Notification struct {
	ID           uuid.UUID
	ContractorID string
	Type         NotificationType
	Priority     NotificationPriority
	Title        string
	Message      string
	Data         map[string]any
	IsRead       bool
	ReadAt       *time.Time
	ExpiresAt    *time.Time
	CreatedAt    time.Time
}

// NotificationDraft describes one notification to be fanned out across a
// contractor id set. ExpiresInHours, when positive, is resolved to an absolute
// timestamp at creation time.
type NotificationDraft struct {
	Type           NotificationType
	Priority       NotificationPriority
	Title          string
	Message        string
	Data           map[string]any
	ExpiresInHours int
}

// SystemNotification is an operator-originated announcement.
type SystemNotification struct {
	Title    string               `json:"title"`
	Message  string               `json:"message"`
	Priority NotificationPriority `json:"priority"`
	Data     map[string]any       `json:"data,omitempty"`
}

// DeliveryResult reports a best-effort broadcast attempt. Success means the
// frames left this process without a transport error; it is not a receipt.
type DeliveryResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
