package repositories

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/core/audit"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/models"
)

var (
	// ErrNotFound is returned when a keyed record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a compare-and-set lost a race or an insert hit an existing key.
	// Callers retry the whole transaction.
	ErrConflict = errors.New("write conflict")

	// ErrInvalidCursor is returned for a page token that Cursor.Encode did not produce
	ErrInvalidCursor = errors.New("invalid cursor")
)

// Reader is the keyed read side shared by stores and transactions
type Reader interface {
	GetAccount(ctx context.Context, userID string) (*models.CreditAccount, error)
	GetEntry(ctx context.Context, id string) (*models.LedgerEntry, error)
	GetReferral(ctx context.Context, userID string) (*models.ReferralRecord, error)
	GetReferralByCode(ctx context.Context, code string) (*models.ReferralRecord, error)
	GetProfile(ctx context.Context, userID string) (*models.GamificationProfile, error)
	GetToolRun(ctx context.Context, id string) (*models.ToolRun, error)
}

// Tx is a unit of work. Every write inside one Tx commits or rolls back together.
type Tx interface {
	Reader

	InsertAccount(ctx context.Context, acc *models.CreditAccount) error
	// UpdateAccount writes acc if its version is unchanged and bumps acc.Version
	UpdateAccount(ctx context.Context, acc *models.CreditAccount) error
	InsertEntry(ctx context.Context, entry *models.LedgerEntry) error

	InsertReferral(ctx context.Context, rec *models.ReferralRecord) error
	UpdateReferral(ctx context.Context, rec *models.ReferralRecord) error

	InsertProfile(ctx context.Context, p *models.GamificationProfile) error
	UpdateProfile(ctx context.Context, p *models.GamificationProfile) error

	InsertToolRun(ctx context.Context, run *models.ToolRun) error

	InsertAudit(ctx context.Context, entry *audit.AuditLog) error
}

// Store is the injected persistence handle
type Store interface {
	Reader

	// WithinTx runs fn in one transaction. Inside fn only tx may be used.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	ListEntries(ctx context.Context, q EntryQuery) ([]models.LedgerEntry, error)
	SumEntries(ctx context.Context, userID string) (sum int64, count int64, err error)
	ListAccountIDs(ctx context.Context, after string, limit int) ([]string, error)
	ListAuditLogs(ctx context.Context, filter audit.AuditFilter) ([]audit.AuditLog, int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// EntryQuery selects a page of a user's ledger, newest first
type EntryQuery struct {
	UserID string
	Limit  int
	Before *Cursor
}

// Cursor is the position of the last entry of a page
type Cursor struct {
	CreatedAt time.Time
	Seq       int64
}

// CursorFor returns the cursor pointing after entry
func CursorFor(entry models.LedgerEntry) *Cursor {
	return &Cursor{CreatedAt: entry.CreatedAt, Seq: entry.Seq}
}

// Encode renders the cursor as an opaque token
func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + "." + strconv.FormatInt(c.Seq, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by Cursor.Encode
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	nanos, seq, ok := strings.Cut(string(raw), ".")
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrInvalidCursor, token)
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	s, err := strconv.ParseInt(seq, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return &Cursor{CreatedAt: time.Unix(0, n).UTC(), Seq: s}, nil
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*GormStore)(nil)
	_ Tx    = (*sqliteQueries)(nil)
	_ Tx    = (*gormQueries)(nil)
)
