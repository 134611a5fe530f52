package models

import "time"

type UserRole string

const (
	UserRoleUser       UserRole = "user"
	UserRoleAdmin      UserRole = "admin"
	UserRoleSuperAdmin UserRole = "superadmin"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleUser, UserRoleAdmin, UserRoleSuperAdmin:
		return true
	}
	return false
}

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
)

type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Username     string
	Email        string
	PasswordHash []byte
	Role         UserRole
	Status       UserStatus
	Bio          string
	AvatarURL    *string
	JoinedDate   time.Time
	LastLogin    *time.Time
	LastLogout   *time.Time
	LastActivity *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public returns a copy safe to hand back to callers outside the service layer.
func (u User) Public() User {
	u.PasswordHash = nil
	return u
}

// NewUser is the registration input. The password is plaintext and never stored.
type NewUser struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Principal is the subject a verified access token resolves to.
type Principal struct {
	UserID int64
	Role   UserRole
}
