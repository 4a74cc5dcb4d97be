package models

import "time"

// EntryType classifies a ledger entry
type EntryType string

const (
	EntryEarn       EntryType = "earn"
	EntrySpend      EntryType = "spend"
	EntryRefund     EntryType = "refund"
	EntryConversion EntryType = "conversion"
	EntryAdmin      EntryType = "admin"
)

// LedgerEntry is one immutable balance mutation.
// ID doubles as the idempotency key of the mutation that produced it.
type LedgerEntry struct {
	ID string `gorm:"type:text;primaryKey" json:"id"`

	// Seq breaks ties between entries sharing a timestamp; assigned by the database
	Seq int64 `gorm:"column:seq;->" json:"-"`

	UserID           string    `gorm:"type:text;not null;index:idx_ledger_user_created,priority:1" json:"user_id"`
	Type             EntryType `gorm:"type:text;not null" json:"type"`
	Amount           int64     `gorm:"not null" json:"amount"`
	Reason           string    `gorm:"type:text" json:"reason"`
	RelatedTool      string    `gorm:"type:text" json:"related_tool,omitempty"`
	ResultingBalance int64     `gorm:"not null" json:"resulting_balance"`
	CreatedAt        time.Time `gorm:"not null;index:idx_ledger_user_created,priority:2,sort:desc" json:"created_at"`
}

// TableName specifies the table name
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
