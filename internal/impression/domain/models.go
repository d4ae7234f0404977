// Package domain contains the impression fact model and ingestion contract.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Type classifies an impression row: the general impression count or one of
// four proximity zones reported by the camera unit.
type Type string

const (
	TypeImpression    Type = "impression"
	TypeZoneImmediate Type = "zone_immediate"
	TypeZoneNear      Type = "zone_near"
	TypeZoneMid       Type = "zone_mid"
	TypeZoneFar       Type = "zone_far"
)

// Types lists every valid impression type.
var Types = []Type{TypeImpression, TypeZoneImmediate, TypeZoneNear, TypeZoneMid, TypeZoneFar}

// Valid reports whether t is a known impression type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Impression is an immutable fact row keyed by an externally derived string
// identity so rows from both source systems (Nayax, DataJam) merge into one
// table. A device number does not map 1:1 to a machine; the association goes
// through the machine_impressions bridge.
type Impression struct {
	ID               string            `gorm:"primaryKey" json:"id"`
	DeviceNumber     string            `gorm:"not null;index" json:"device_number"`
	Date             time.Time         `gorm:"type:date;not null;index" json:"date"`
	TotalImpressions float64           `gorm:"not null" json:"total_impressions"`
	Seconds          int64             `gorm:"not null" json:"seconds"`
	AdvertPlayouts   int64             `gorm:"not null" json:"advert_playouts"`
	Type             Type              `gorm:"type:text;not null;uniqueIndex:idx_impressions_source_type" json:"type"`
	SourceSystemName string            `gorm:"not null" json:"source_system_name"`
	SourceSystemID   string            `gorm:"not null;uniqueIndex:idx_impressions_source_type" json:"source_system_id"`
	Raw              datatypes.JSONMap `gorm:"type:jsonb" json:"raw,omitempty"`
	CreatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Impression) TableName() string { return "impressions" }
