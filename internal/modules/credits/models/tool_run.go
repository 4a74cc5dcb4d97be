package models

import (
	"time"

	"gorm.io/datatypes"
)

// ToolRun is the receipt of a charged tool run, keyed like the spend entry it produced.
// Result holds the response returned to the caller so a replay can return it unchanged.
type ToolRun struct {
	ID        string         `gorm:"type:text;primaryKey" json:"id"`
	UserID    string         `gorm:"type:text;not null;index" json:"user_id"`
	ToolID    string         `gorm:"type:text" json:"tool_id"`
	Result    datatypes.JSON `gorm:"type:jsonb;not null" json:"result"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

// TableName specifies the table name
func (ToolRun) TableName() string {
	return "tool_runs"
}
