package revisionable

import (
	"encoding/json"
	"time"
)

// Revision is one changed field of one mutation.
type Revision struct {
	ID               int64
	RevisionableType string
	RevisionableID   string
	UserType         *string
	UserID           *string
	Key              string
	OldValue         *string
	NewValue         *string
	Context          Payload
	IP               *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Payload wraps the optional JSON context of a revision.
// The zero value is undefined, meaning the context column is not written at all.
type Payload struct {
	defined bool
	raw     json.RawMessage
}

// NewPayload returns a defined payload. A nil or "null" raw value is stored as SQL NULL.
func NewPayload(raw json.RawMessage) Payload {
	p := Payload{defined: true}
	if len(raw) > 0 && string(raw) != "null" {
		p.raw = append(json.RawMessage(nil), raw...)
	}
	return p
}

// PayloadOf marshals v into a defined payload. Values that cannot be encoded become NULL.
func PayloadOf(v any) Payload {
	if v == nil {
		return NewPayload(nil)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return NewPayload(nil)
	}
	return NewPayload(raw)
}

// Defined reports whether the payload should be written.
func (p Payload) Defined() bool {
	return p.defined
}

// IsNull reports whether the payload holds no JSON document.
func (p Payload) IsNull() bool {
	return len(p.raw) == 0
}

// Raw returns a copy of the JSON bytes, or nil.
func (p Payload) Raw() json.RawMessage {
	if len(p.raw) == 0 {
		return nil
	}
	return append(json.RawMessage(nil), p.raw...)
}

// Text returns the JSON text for storage, or nil when null or undefined.
func (p Payload) Text() *string {
	if len(p.raw) == 0 {
		return nil
	}
	s := string(p.raw)
	return &s
}
