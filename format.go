package revisionable

import (
	"time"
)

// FormatInput holds everything needed to shape one revision.
type FormatInput struct {
	EntityType string
	EntityID   string
	Key        string
	Old, New   any
	Actor      *Actor
	ClientIP   string
	Context    Payload
	Now        time.Time
}

// FormatRevision builds the revision for a single field change. It never fails:
// incomplete actor data leaves the user columns empty.
func FormatRevision(in FormatInput) Revision {
	rev := Revision{
		RevisionableType: in.EntityType,
		RevisionableID:   in.EntityID,
		Key:              in.Key,
		OldValue:         FormatValue(in.Old),
		NewValue:         FormatValue(in.New),
		Context:          in.Context,
		CreatedAt:        in.Now,
		UpdatedAt:        in.Now,
	}
	if in.ClientIP != "" {
		ip := in.ClientIP
		rev.IP = &ip
	}
	if a := in.Actor; a != nil {
		if a.Type != "" && !a.DefaultType {
			t := a.Type
			rev.UserType = &t
		}
		if a.ID != "" {
			id := a.ID
			rev.UserID = &id
		}
	}
	return rev
}
