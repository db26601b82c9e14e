package types

import "time"

// SecurityEventType names an authentication or authorization change.
type SecurityEventType string

const (
	EventSignUp          SecurityEventType = "user.signed_up"
	EventLogIn           SecurityEventType = "user.logged_in"
	EventLogOut          SecurityEventType = "user.logged_out"
	EventTokenRotated    SecurityEventType = "token.rotated"
	EventPasswordChanged SecurityEventType = "user.password_changed"
	EventRoleGranted     SecurityEventType = "role.granted"
	EventRoleRevoked     SecurityEventType = "role.revoked"
)

// SecurityEvent is published on the event bus after a state change commits.
type SecurityEvent struct {
	ID         string            `json:"id"`
	Type       SecurityEventType `json:"type"`
	UserID     int64             `json:"user_id"`
	ActorID    int64             `json:"actor_id,omitempty"`
	RoleID     int64             `json:"role_id,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
