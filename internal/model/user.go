package model

import "time"

// Application roles.  GUEST accounts belong to hotel guests; the staff
// roles gate both HTTP endpoints and realtime channel membership.
const (
    RoleGuest     = "GUEST"
    RoleWaiter    = "WAITER"
    RoleChef      = "CHEF"
    RoleBartender = "BARTENDER"
    RoleManager   = "MANAGER"
)

// User represents an application user record as stored in the `users`
// table.  Each field corresponds to a column in the database.  The json
// tags are omitted here because these structs are primarily used
// internally by the repository layer; handlers define separate response
// types with appropriate JSON tags.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – role name (GUEST, WAITER, CHEF, BARTENDER, MANAGER).
//  IsActive     – whether the account is active; inactive accounts are
//                 refused at realtime connect time.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           uint64    // users.id
    Email        string    // users.email
    PasswordHash string    // users.password_hash
    Role         string    // users.role
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// RoleValid reports whether s names a known role.
func RoleValid(s string) bool {
    switch s {
    case RoleGuest, RoleWaiter, RoleChef, RoleBartender, RoleManager:
        return true
    }
    return false
}

// StaffRole reports whether s is one of the staff roles (everything
// except GUEST).
func StaffRole(s string) bool {
    return RoleValid(s) && s != RoleGuest
}
