// Package domain contains the geography reference model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Geography is a physical area grouping machines.
type Geography struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	Name          string       `gorm:"uniqueIndex;not null" json:"name"`
	Postcode      *string      `gorm:"type:text" json:"postcode,omitempty"`
	MapLocationID *string      `gorm:"type:text" json:"map_location_id,omitempty"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Geography) TableName() string { return "geographies" }
