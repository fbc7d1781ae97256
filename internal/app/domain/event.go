package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventState is the processing state recorded on a stored event.
type EventState string

const (
	// EventStatePending marks an event accepted but not yet processed downstream.
	EventStatePending EventState = "pending"
	// EventStateAcknowledged marks an event processed downstream.
	EventStateAcknowledged EventState = "acknowledged"
	// EventStateDropped marks an event intentionally discarded downstream.
	EventStateDropped EventState = "dropped"
)

// Ownership attributes a record to a tenant.
type Ownership struct {
	BuildableID    string `json:"buildableId" bson:"buildableId"`
	ClientID       string `json:"clientId" bson:"clientId"`
	OrganizationID string `json:"organizationId,omitempty" bson:"organizationId,omitempty"`
	ProjectID      string `json:"projectId,omitempty" bson:"projectId,omitempty"`
	UserID         string `json:"userId,omitempty" bson:"userId,omitempty"`
}

// Event is one API call mediated by the gateway. It is not mutated after NewEvent returns.
type Event struct {
	ID          string            `json:"_id" bson:"_id"`
	Key         string            `json:"key" bson:"key"`
	Name        string            `json:"name" bson:"name"`
	Type        string            `json:"type" bson:"type"`
	Group       string            `json:"group" bson:"group"`
	Topic       string            `json:"topic" bson:"topic"`
	Environment string            `json:"environment" bson:"environment"`
	Ownership   Ownership         `json:"ownership" bson:"ownership"`
	AccessKeyID string            `json:"accessKeyId" bson:"accessKeyId"`
	Method      string            `json:"method,omitempty" bson:"method,omitempty"`
	Path        string            `json:"path,omitempty" bson:"path,omitempty"`
	Platform    string            `json:"platform,omitempty" bson:"platform,omitempty"`
	StatusCode  int               `json:"statusCode,omitempty" bson:"statusCode,omitempty"`
	LatencyMS   int64             `json:"latencyMs,omitempty" bson:"latencyMs,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" bson:"headers,omitempty"`
	Body        string            `json:"body,omitempty" bson:"body,omitempty"`
	ArrivedAt   int64             `json:"arrivedAt" bson:"arrivedAt"`
	ArrivedDate string            `json:"arrivedDate" bson:"arrivedDate"`
	CreatedAt   int64             `json:"createdAt" bson:"createdAt"`
	State       EventState        `json:"state" bson:"state"`
}

// NewEvent completes identity and timing fields of an incoming event.
func NewEvent(event Event, now time.Time) Event {
	now = now.UTC()
	if strings.TrimSpace(event.ID) == "" {
		event.ID = "evt::" + uuid.NewString()
	}
	if event.ArrivedAt == 0 {
		event.ArrivedAt = now.UnixMilli()
	}
	if event.ArrivedDate == "" {
		event.ArrivedDate = time.UnixMilli(event.ArrivedAt).UTC().Format(time.DateOnly)
	}
	if event.CreatedAt == 0 {
		event.CreatedAt = now.UnixMilli()
	}
	if event.State == "" {
		event.State = EventStatePending
	}
	if event.Topic == "" && event.Type != "" && event.Name != "" {
		event.Topic = strings.ToLower(strings.TrimSpace(event.Type)) + "." + strings.TrimSpace(event.Name)
	}
	return event
}
