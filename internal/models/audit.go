package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditEntry records an administrative action on a progress report. Entries
// outlive the report they describe, so ReportID is not a foreign key.
type AuditEntry struct {
	ID            uint              `gorm:"primaryKey"`
	ActorID       uint              `gorm:"not null;index"`
	ActorRole     string            `gorm:"size:32;not null"`
	Action        string            `gorm:"size:64;not null;index"`
	ReportID      string            `gorm:"size:36;index"`
	StudentID     uint              `gorm:"index"`
	CorrelationID string            `gorm:"size:64"`
	Details       datatypes.JSONMap `gorm:"type:json"`
	CreatedAt     time.Time         `gorm:"index"`
}

// TableName pins the audit table name.
func (AuditEntry) TableName() string {
	return "report_audit_entries"
}
