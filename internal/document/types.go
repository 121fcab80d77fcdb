package document

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Type names a versioned document.
type Type string

// Document types.
const (
	TypeSchedule Type = "schedule"
	TypeSettings Type = "settings"
)

// Types lists every document type in a stable order.
var Types = []Type{TypeSchedule, TypeSettings}

// ParseType validates a document type name. Matching is case-insensitive.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypeSchedule:
		return TypeSchedule, nil
	case TypeSettings:
		return TypeSettings, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

// Document is one stored version of a schedule or settings payload.
type Document struct {
	Type        Type            `json:"type"`
	Version     int             `json:"version"`
	Data        json.RawMessage `json:"data"`
	Fingerprint string          `json:"fingerprint"`
	IsActive    bool            `json:"isActive"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Decode unmarshals the document payload into a generic value.
func (d *Document) Decode() (any, error) {
	var v any
	if err := json.Unmarshal(d.Data, &v); err != nil {
		return nil, fmt.Errorf("decoding %s v%d: %w", d.Type, d.Version, err)
	}
	return v, nil
}

// Fingerprint identifies the observable state of a stored resource.
//
// ModTime moves on every write, including idempotent re-saves. Hash moves
// only when content changes. Change detection compares Hash.
type Fingerprint struct {
	ModTime time.Time `json:"modTime"`
	Hash    string    `json:"hash"`
}

// Changed reports whether other carries different content.
func (f Fingerprint) Changed(other Fingerprint) bool {
	return f.Hash != other.Hash
}

// IsZero reports whether nothing was observed.
func (f Fingerprint) IsZero() bool {
	return f.Hash == "" && f.ModTime.IsZero()
}
