package model

import (
	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleTechnician Role = "TECHNICIAN"
	RoleClient     Role = "CLIENT"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTechnician, RoleClient:
		return true
	}
	return false
}

type User struct {
	Base
	Email        string  `json:"email" db:"email"`
	Name         string  `json:"name" db:"name"`
	Role         Role    `json:"role" db:"role"`
	Avatar       *string `json:"avatar,omitempty" db:"avatar"`
	PasswordHash string  `json:"-" db:"password_hash"`
	Phone        *string `json:"phone,omitempty" db:"phone"`
	IsActive     bool    `json:"is_active" db:"is_active"`
}

// UserSummary is the subset of a user embedded in other resources
type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  Role      `json:"role"`
}

func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

type CreateUserRequest struct {
	Email    string  `json:"email" binding:"required,email"`
	Name     string  `json:"name" binding:"required,max=200"`
	Password string  `json:"password" binding:"required,min=8"`
	Role     Role    `json:"role" binding:"omitempty,oneof=ADMIN TECHNICIAN CLIENT"`
	Phone    *string `json:"phone" binding:"omitempty,max=50"`
	Avatar   *string `json:"avatar" binding:"omitempty,url"`
}

type UpdateUserRequest struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	Name     *string `json:"name" binding:"omitempty,min=1,max=200"`
	Password *string `json:"password" binding:"omitempty,min=8"`
	Role     *Role   `json:"role" binding:"omitempty,oneof=ADMIN TECHNICIAN CLIENT"`
	Phone    *string `json:"phone" binding:"omitempty,max=50"`
	Avatar   *string `json:"avatar" binding:"omitempty,url"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type UserFilters struct {
	Pagination
	SortOrder
	Role     *Role
	IsActive *bool
	Search   string
}
