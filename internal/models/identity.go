package models

// Role partitions an owner's ledger. Duplicates are never detected across roles.
type Role string

const (
	RoleNormal   Role = "normal"
	RoleBusiness Role = "business"
)

// Identity is the authenticated caller as resolved by the token verifier.
type Identity struct {
	OwnerID string `json:"owner_id"`
	Role    Role   `json:"role"`
}

func (r Role) Valid() bool {
	return r == RoleNormal || r == RoleBusiness
}
