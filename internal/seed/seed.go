// Package seed bootstraps the first superuser so a fresh install has a
// usable account for reference-data and grant management.
package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	identitydomain "github.com/vendwatch/vendwatch/internal/identity/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EnsureAdmin creates an active superuser with the given email when no user
// with that email exists. Reruns are no-ops.
func EnsureAdmin(db *gorm.DB, email string) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return errors.New("seed admin email is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user identitydomain.User
		err := tx.WithContext(ctx).Where("email = ?", email).First(&user).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()
		user = identitydomain.User{
			ID:          node.Generate(),
			Email:       email,
			FullName:    "Bootstrap Admin",
			Role:        identitydomain.RoleAdmin,
			Permissions: datatypes.JSONSlice[string]{identitydomain.PermissionAny},
			Active:      true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.WithContext(ctx).Create(&user).Error
	})
}
