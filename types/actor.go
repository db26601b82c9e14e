package types

// Actor is an authenticated user together with the roles resolved for them.
type Actor struct {
	UserID int64
	Email  string
	Roles  RoleSet
}
