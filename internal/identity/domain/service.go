package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateUserRequest struct {
	Email       string
	FullName    string
	Role        Role
	Permissions []string
}

type GrantRequest struct {
	UserID   snowflake.ID
	TargetID snowflake.ID
}

// Service manages users and their machine/product grants.
type Service interface {
	Create(ctx context.Context, req CreateUserRequest) (User, error)
	GetByID(ctx context.Context, id snowflake.ID) (User, error)
	GrantMachine(ctx context.Context, req GrantRequest) error
	RevokeMachine(ctx context.Context, req GrantRequest) error
	GrantProduct(ctx context.Context, req GrantRequest) error
	RevokeProduct(ctx context.Context, req GrantRequest) error
	MachineGrants(ctx context.Context, userID snowflake.ID) ([]snowflake.ID, error)
	ProductGrants(ctx context.Context, userID snowflake.ID) ([]snowflake.ID, error)
}

var (
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidFullName = errors.New("invalid_full_name")
	ErrInvalidRole     = errors.New("invalid_role")
	ErrInvalidUser     = errors.New("invalid_user")
	ErrInvalidTarget   = errors.New("invalid_target")
	ErrUserExists      = errors.New("user_exists")
	ErrNotFound        = errors.New("not_found")
)
