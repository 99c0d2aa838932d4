// Package id defines the identifiers used by every Beacon record.
//
// An ID is a TypeID: a short entity prefix followed by a K-sortable,
// UUIDv7-based suffix, rendered as "prefix_suffix" (for example
// "del_01h455vb4pex5vsknk084sn02q"). The prefix makes IDs self-describing in
// logs and API payloads; parse helpers reject IDs of the wrong kind.
package id

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"go.jetify.com/typeid/v2"
)

// Prefix is the entity tag encoded in an ID.
type Prefix string

// Entity prefixes.
const (
	PrefixEndpoint Prefix = "ep"
	PrefixEvent    Prefix = "evt"
	PrefixDelivery Prefix = "del"
	PrefixAttempt  Prefix = "att"
	PrefixWorkflow Prefix = "wf"
	PrefixRun      Prefix = "run"
	PrefixStepLog  Prefix = "slog"
	PrefixSubject  Prefix = "subj"
	PrefixTask     Prefix = "task"
)

// ID identifies a Beacon record. The zero value is Nil.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates an ID with the given prefix. An invalid prefix is a
// programming error and panics.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// Parse parses any TypeID string.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Nil, fmt.Errorf("id: parse: empty string")
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and checks that it carries the expected prefix.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if got := parsed.Prefix(); got != expected {
		return Nil, fmt.Errorf("id: %q is a %q id, want %q", s, got, expected)
	}
	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for fixed IDs in tests.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return parsed
}

// ──────────────────────────────────────────────────
// Constructors
// ──────────────────────────────────────────────────

func NewEndpointID() ID { return New(PrefixEndpoint) }
func NewEventID() ID    { return New(PrefixEvent) }
func NewDeliveryID() ID { return New(PrefixDelivery) }
func NewAttemptID() ID  { return New(PrefixAttempt) }
func NewWorkflowID() ID { return New(PrefixWorkflow) }
func NewRunID() ID      { return New(PrefixRun) }
func NewStepLogID() ID  { return New(PrefixStepLog) }
func NewSubjectID() ID  { return New(PrefixSubject) }
func NewTaskID() ID     { return New(PrefixTask) }

// ──────────────────────────────────────────────────
// Prefix-checked parsers
// ──────────────────────────────────────────────────

func ParseEndpointID(s string) (ID, error) { return ParseWithPrefix(s, PrefixEndpoint) }
func ParseEventID(s string) (ID, error)    { return ParseWithPrefix(s, PrefixEvent) }
func ParseDeliveryID(s string) (ID, error) { return ParseWithPrefix(s, PrefixDelivery) }
func ParseWorkflowID(s string) (ID, error) { return ParseWithPrefix(s, PrefixWorkflow) }
func ParseRunID(s string) (ID, error)      { return ParseWithPrefix(s, PrefixRun) }
func ParseSubjectID(s string) (ID, error)  { return ParseWithPrefix(s, PrefixSubject) }

// ──────────────────────────────────────────────────
// Methods
// ──────────────────────────────────────────────────

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the entity prefix, or "" for Nil.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether i is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// Less orders IDs by their string form. Suffixes are UUIDv7, so IDs of one
// prefix sort by creation time.
func (i ID) Less(other ID) bool { return i.String() < other.String() }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer. Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // NULL for optional references
	}
	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
