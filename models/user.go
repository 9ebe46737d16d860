package models

import "time"

type Role string

const (
	RoleUser   Role = "user"
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
	RoleFraud  Role = "fraud"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleVendor, RoleAdmin, RoleFraud:
		return true
	}
	return false
}

type User struct {
	ID       string    `json:"_id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	PhotoURL string    `json:"photoURL"`
	Role     Role      `json:"role"`
	Created  time.Time `json:"created"`
}
