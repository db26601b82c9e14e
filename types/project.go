package types

import "time"

// Project is a workspace owned by a single user. The owner has full rights on
// it regardless of role assignments.
type Project struct {
	// ID is the unique identifier of the project.
	ID int64 `json:"id" db:"id"`

	// Name is the display name of the project.
	Name string `json:"name" db:"name"`

	// Description is free text shown with the project.
	Description string `json:"description" db:"description"`

	// Public marks projects listed for everyone.
	Public bool `json:"public" db:"public"`

	// OwnerID is the user that created the project.
	OwnerID int64 `json:"owner_id" db:"owner_id"`

	// CreatedAt is the timestamp when the project was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the project.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProjectInput carries the mutable fields of a project.
type ProjectInput struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description" validate:"max=255"`
	Public      *bool  `json:"public,omitempty"`
}
