// Package domain contains the product catalog models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ProductCategory groups products for category-level reports.
type ProductCategory struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"uniqueIndex;not null" json:"name"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ProductCategory) TableName() string { return "product_categories" }

// Product is a sellable item. Price is stored in cents.
type Product struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	Name       string       `gorm:"not null" json:"name"`
	PriceCents int64        `gorm:"not null" json:"price_cents"`
	CategoryID snowflake.ID `gorm:"not null;index" json:"category_id"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Product) TableName() string { return "products" }
