// Package enums provides type-safe enumeration types shared between the run
// orchestration layer and the web interface. Values are stored as strings in
// the database and on the wire.
package enums

import (
	"database/sql/driver"
	"fmt"
)

// RunStatus represents the lifecycle state of a batch run
type RunStatus struct {
	name string
}

// RunStatus values
var (
	RunStatusScheduled = RunStatus{name: "scheduled"}
	RunStatusRunning   = RunStatus{name: "running"}
	RunStatusSuccess   = RunStatus{name: "success"}
	RunStatusFailed    = RunStatus{name: "failed"}
)

var runStatusValues = map[string]RunStatus{
	"scheduled": RunStatusScheduled,
	"running":   RunStatusRunning,
	"success":   RunStatusSuccess,
	"failed":    RunStatusFailed,
}

// ParseRunStatus converts a string to RunStatus, case sensitive
func ParseRunStatus(s string) (RunStatus, error) {
	if v, ok := runStatusValues[s]; ok {
		return v, nil
	}
	return RunStatus{}, fmt.Errorf("invalid run status: %q", s)
}

// String returns the string representation
func (r RunStatus) String() string { return r.name }

// MarshalText implements encoding.TextMarshaler
func (r RunStatus) MarshalText() ([]byte, error) { return []byte(r.name), nil }

// UnmarshalText implements encoding.TextUnmarshaler
func (r *RunStatus) UnmarshalText(text []byte) error {
	v, err := ParseRunStatus(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Value implements driver.Valuer for database storage
func (r RunStatus) Value() (driver.Value, error) { return r.name, nil }

// Scan implements sql.Scanner for database retrieval
func (r *RunStatus) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		parsed, err := ParseRunStatus(v)
		if err != nil {
			return err
		}
		*r = parsed
		return nil
	case []byte:
		parsed, err := ParseRunStatus(string(v))
		if err != nil {
			return err
		}
		*r = parsed
		return nil
	default:
		return fmt.Errorf("can't scan run status from %T", value)
	}
}

// EventType represents the kind of run event recorded in history
type EventType struct {
	name string
}

// EventType values
var (
	EventTypeDispatched = EventType{name: "dispatched"}
	EventTypeResumed    = EventType{name: "resumed"}
	EventTypeScheduled  = EventType{name: "scheduled"}
)

var eventTypeValues = map[string]EventType{
	"dispatched": EventTypeDispatched,
	"resumed":    EventTypeResumed,
	"scheduled":  EventTypeScheduled,
}

// ParseEventType converts a string to EventType
func ParseEventType(s string) (EventType, error) {
	if v, ok := eventTypeValues[s]; ok {
		return v, nil
	}
	return EventType{}, fmt.Errorf("invalid event type: %q", s)
}

// String returns the string representation
func (e EventType) String() string { return e.name }

// MarshalText implements encoding.TextMarshaler
func (e EventType) MarshalText() ([]byte, error) { return []byte(e.name), nil }

// UnmarshalText implements encoding.TextUnmarshaler
func (e *EventType) UnmarshalText(text []byte) error {
	v, err := ParseEventType(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Value implements driver.Valuer for database storage
func (e EventType) Value() (driver.Value, error) { return e.name, nil }

// Scan implements sql.Scanner for database retrieval
func (e *EventType) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		parsed, err := ParseEventType(v)
		if err != nil {
			return err
		}
		*e = parsed
		return nil
	case []byte:
		parsed, err := ParseEventType(string(v))
		if err != nil {
			return err
		}
		*e = parsed
		return nil
	default:
		return fmt.Errorf("can't scan event type from %T", value)
	}
}
