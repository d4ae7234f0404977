// Package domain contains the machine models and the device-number bridge.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Machine is a vending machine placed in exactly one geography.
type Machine struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"not null" json:"name"`
	DisplayName *string      `gorm:"type:text" json:"display_name,omitempty"`
	GeographyID snowflake.ID `gorm:"not null;index" json:"geography_id"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Machine) TableName() string { return "machines" }

// EffectiveName is the presentation name: display name when set, else name.
func (m Machine) EffectiveName() string {
	if m.DisplayName != nil && *m.DisplayName != "" {
		return *m.DisplayName
	}
	return m.Name
}

// MachineImpression links a machine to an impression device number.
// Impression devices are provisioned independently of machine records, so
// the association is a backfillable bridge row rather than a machine column.
type MachineImpression struct {
	ID                      snowflake.ID `gorm:"primaryKey" json:"id"`
	MachineID               snowflake.ID `gorm:"not null;uniqueIndex:idx_machine_impressions_machine_device" json:"machine_id"`
	ImpressionDeviceNumber  string       `gorm:"not null;uniqueIndex:idx_machine_impressions_machine_device;index" json:"impression_device_number"`
	CreatedAt               time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (MachineImpression) TableName() string { return "machine_impressions" }
