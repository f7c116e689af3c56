package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType categorizes an audit event
type EventType string

const (
	// Authorization events
	EventTypePermissionCheck EventType = "authz.permission_check"
	EventTypeAccessDenied    EventType = "authz.access_denied"
	EventTypeRoleGrant       EventType = "authz.role_grant"
	EventTypeRoleRevoke      EventType = "authz.role_revoke"
	EventTypeCacheRebuild    EventType = "authz.cache_rebuild"
	EventTypeCacheClear      EventType = "authz.cache_clear"

	// Administrative events
	EventTypeRoleCreate       EventType = "admin.role_create"
	EventTypeRoleDelete       EventType = "admin.role_delete"
	EventTypeMembershipChange EventType = "admin.membership_change"
)

// EventStatus is the outcome of the audited operation
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event is a single audit record
type Event struct {
	ID           string                 `json:"id"`
	Timestamp    time.Time              `json:"timestamp"`
	Type         EventType              `json:"type"`
	Status       EventStatus            `json:"status"`
	ActorID      *int64                 `json:"actor_id,omitempty"`
	SubjectID    *int64                 `json:"subject_id,omitempty"`
	ResourceType string                 `json:"resource_type,omitempty"`
	ResourceID   string                 `json:"resource_id,omitempty"`
	Message      string                 `json:"message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// NewEvent creates an event stamped with a fresh id and the current
// time.
func NewEvent(eventType EventType, status EventStatus) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Status:    status,
	}
}
