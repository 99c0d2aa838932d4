// Package entity defines the timestamps shared by all Beacon records.
package entity

import "time"

// Entity is embedded by every persisted Beacon record.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an Entity stamped with the current UTC time.
func New() Entity {
	return At(time.Now())
}

// At returns an Entity stamped with t, for callers driven by an injected clock.
func At(t time.Time) Entity {
	t = t.UTC()
	return Entity{CreatedAt: t, UpdatedAt: t}
}

// Touch moves UpdatedAt to t.
func (e *Entity) Touch(t time.Time) {
	e.UpdatedAt = t.UTC()
}
