package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Actions recorded by the ledger
const (
	ActionAdjust   = "adjust"
	ActionClose    = "close"
	ActionJobRun   = "job_run"
	EntityAccount  = "credit_account"
	EntityResetJob = "monthly_reset"
)

// AuditLog represents an operator or system action on ledger state
type AuditLog struct {
	ID uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`

	// ActorID is the user id from the token, or "system" for scheduled jobs
	ActorID string `json:"actor_id" gorm:"type:text;index"`

	Action   string `json:"action" gorm:"type:text;not null;index"`
	Entity   string `json:"entity" gorm:"type:text;not null;index"`
	EntityID string `json:"entity_id" gorm:"type:text;index"`

	// Change tracking
	OldValue datatypes.JSON `json:"old_value,omitempty" gorm:"type:jsonb"`
	NewValue datatypes.JSON `json:"new_value,omitempty" gorm:"type:jsonb"`

	Description string         `json:"description,omitempty" gorm:"type:text"`
	Metadata    datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName specifies the table name
func (AuditLog) TableName() string {
	return "audit_logs"
}

// AuditFilter represents filters for querying audit logs
type AuditFilter struct {
	ActorID   string
	Action    string
	Entity    string
	EntityID  string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
}

// Normalize applies paging defaults
func (f *AuditFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 50
	}
	if f.PageSize > 500 {
		f.PageSize = 500
	}
}

// Offset is the number of rows skipped for the current page
func (f AuditFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// AuditLogResponse represents paginated audit log response
type AuditLogResponse struct {
	Logs       []AuditLog `json:"logs"`
	TotalCount int64      `json:"total_count"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}
