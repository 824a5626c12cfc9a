package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidMapping   = errors.New("core: invalid mapping")
	ErrMappingNotFound  = errors.New("core: mapping not found")
	ErrSettingNotFound  = errors.New("core: setting not found")
	ErrInvalidRunStatus = errors.New("core: invalid run status")
	ErrUserNotFound     = errors.New("core: user not found")
	ErrUsernameTaken    = errors.New("core: username already taken")
	ErrInvalidUser      = errors.New("core: invalid user")
)

// Mapping pairs a source-system product id with a target-system product id.
// Mappings are owned by the mapping store; a reconciliation run only reads
// them.
type Mapping struct {
	ID          string
	SourceID    int64
	TargetID    int64
	ProductName string
	CreatedAt   time.Time
}

func (m Mapping) Validate() error {
	if m.SourceID <= 0 {
		return fmt.Errorf("%w: source id must be positive", ErrInvalidMapping)
	}
	if m.TargetID <= 0 {
		return fmt.Errorf("%w: target id must be positive", ErrInvalidMapping)
	}
	return nil
}

type CreateMappingInput struct {
	SourceID    int64
	TargetID    int64
	ProductName string
}

func (in CreateMappingInput) Validate() error {
	return Mapping{SourceID: in.SourceID, TargetID: in.TargetID}.Validate()
}

// CatalogItem is the typed view of one item record after indexing. Fields
// other than drop_price and nal are retained on Raw and passed through
// unread.
type CatalogItem struct {
	ID        int64
	DropPrice int64
	Nal       int64
	Raw       map[string]any
}

// CatalogSize is the typed view of one size record after indexing. Val is
// the join key between the two systems; size ids are catalog-local.
type CatalogSize struct {
	ID     int64
	ItemID int64
	Val    string
	Qty    int64
	Raw    map[string]any
}

// ItemUpdate instructs one item-level write against the target system. It
// always carries both fields because the target update endpoint replaces
// price and availability atomically.
type ItemUpdate struct {
	TargetItemID int64
	NewPrice     int64
	NewNal       int64
}

// SizeUpdate instructs one size-level write against the target system.
type SizeUpdate struct {
	TargetSizeID int64
	Val          string
	NewQty       int64
}

// ChangedMapping pairs a mapping with the human-readable summary of what
// its reconciliation changed.
type ChangedMapping struct {
	Mapping Mapping
	Details string
}

type RunStatus string

const (
	RunStatusSuccess         RunStatus = "success"
	RunStatusFailed          RunStatus = "failed"
	RunStatusAuditIncomplete RunStatus = "audit_incomplete"
)

func (s RunStatus) Validate() error {
	switch s {
	case RunStatusSuccess, RunStatusFailed, RunStatusAuditIncomplete:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidRunStatus, string(s))
}

// RunResult describes one end-to-end reconciliation run. DroppedItems and
// DroppedSizes count records the indexer skipped for missing or
// non-coercible identifiers; they never fail the run.
type RunResult struct {
	RunID                string
	StartedAt            time.Time
	CompletedAt          time.Time
	Status               RunStatus
	ItemUpdatesAttempted int
	ItemUpdatesFailed    int
	SizeUpdatesAttempted int
	SizeUpdatesFailed    int
	MappingsChanged      int
	DroppedItems         int
	DroppedSizes         int
	Err                  error
}

// SyncLog is one audit row for a mapping that had at least one applied
// change during a run.
type SyncLog struct {
	ID          string
	StartedAt   time.Time
	CompletedAt time.Time
	Status      RunStatus
	ProductName string
	SourceID    int64
	TargetID    int64
	Details     string
	CreatedAt   time.Time
}

// User is an operator account for the admin surface. Only the bcrypt
// hash of the password is ever stored.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

type CreateUserInput struct {
	Username     string
	PasswordHash string
}

func (in CreateUserInput) Validate() error {
	if strings.TrimSpace(in.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidUser)
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return fmt.Errorf("%w: password hash is required", ErrInvalidUser)
	}
	return nil
}

type Setting struct {
	Key   string
	Value string
}

const (
	SettingSyncInterval = "sync_interval"
	SettingLastSyncRun  = "last_sync_run"
)

// CoerceID extracts an integer identifier from a raw JSON value. JSON
// numbers decode as float64; some catalog deployments return ids as
// strings.
func CoerceID(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// CoerceInt is CoerceID with a zero fallback, used for quantity and price
// fields where an absent value reconciles as zero.
func CoerceInt(value any) int64 {
	coerced, ok := CoerceID(value)
	if !ok {
		return 0
	}
	return coerced
}

// CoerceString renders the size join key. Non-string values keep their
// JSON textual form so two systems disagreeing on the type of "42" still
// join.
func CoerceString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
