// Package domain contains the sale fact model and ingestion contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Sale is an immutable fact row recorded by the ingestion pipeline.
// Date and time-of-day are kept separate because source feeds report them
// separately and hourly reports bucket on the time column alone.
type Sale struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	SaleDate       time.Time         `gorm:"type:date;not null;index" json:"sale_date"`
	SaleTime       string            `gorm:"type:text;not null" json:"sale_time"`
	Quantity       int64             `gorm:"not null" json:"quantity"`
	SourceSystemID string            `gorm:"uniqueIndex;not null" json:"source_system_id"`
	ProductID      snowflake.ID      `gorm:"not null;index" json:"product_id"`
	MachineID      snowflake.ID      `gorm:"not null;index" json:"machine_id"`
	Raw            datatypes.JSONMap `gorm:"type:jsonb" json:"raw,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Sale) TableName() string { return "sales" }
