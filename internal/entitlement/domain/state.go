package domain

import (
	"fmt"
	"time"
)

// Status represents the current entitlement state of a user.
type Status string

const (
	StatusInactive  Status = "inactive"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusError     Status = "error"
)

// ErrorDescriptor records the last failure observed on a state so the UI can
// surface it. Cleared on the next successful operation.
type ErrorDescriptor struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// State is the mutable entitlement record, one per user. It is owned
// exclusively by the entitlement service for the lifetime of the process;
// the durable store only holds serialized snapshots of it.
type State struct {
	UserID                  string           `json:"user_id"`
	CurrentPlan             *Plan            `json:"current_plan,omitempty"`
	Status                  Status           `json:"status"`
	NextBillingDate         *time.Time       `json:"next_billing_date,omitempty"`
	Trial                   bool             `json:"trial"`
	LastSyncedAt            *time.Time       `json:"last_synced_at,omitempty"`
	HasUnsyncedLocalChanges bool             `json:"has_unsynced_local_changes"`
	LastError               *ErrorDescriptor `json:"last_error,omitempty"`
	UpdatedAt               time.Time        `json:"updated_at"`
}

// NewInactiveState creates the initial record for a never-seen user.
func NewInactiveState(userID string) *State {
	return &State{
		UserID:    userID,
		Status:    StatusInactive,
		UpdatedAt: time.Now(),
	}
}

// Clone returns a deep copy. Mutations are applied to clones so a failed
// persist never leaves a partially applied record behind.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	if s.CurrentPlan != nil {
		plan := *s.CurrentPlan
		out.CurrentPlan = &plan
	}
	if s.NextBillingDate != nil {
		t := *s.NextBillingDate
		out.NextBillingDate = &t
	}
	if s.LastSyncedAt != nil {
		t := *s.LastSyncedAt
		out.LastSyncedAt = &t
	}
	if s.LastError != nil {
		desc := *s.LastError
		out.LastError = &desc
	}
	return &out
}

// Validate enforces the structural invariants of a state record.
func (s *State) Validate() error {
	switch s.Status {
	case StatusInactive:
		if s.CurrentPlan != nil {
			return fmt.Errorf("inactive state must not carry a plan")
		}
	case StatusActive:
		if s.CurrentPlan == nil {
			return fmt.Errorf("active state requires a plan")
		}
	case StatusCancelled, StatusExpired, StatusError:
		// Plan reference may be retained for display after cancellation.
	default:
		return fmt.Errorf("unknown status %q", s.Status)
	}
	return nil
}

// IsEntitled reports whether paid features are accessible. Anything other
// than an active subscription is non-entitled: the system fails closed.
func (s *State) IsEntitled() bool {
	return s != nil && s.Status == StatusActive
}

// ExpireIfDue applies the lazy expiry transition: an active subscription
// whose billing date has elapsed becomes expired. Evaluated against ambient
// time on every check so device clock changes are re-examined rather than
// trusted from a cached verdict. Returns true if the transition fired.
func (s *State) ExpireIfDue(now time.Time) bool {
	if s.Status != StatusActive || s.NextBillingDate == nil {
		return false
	}
	if now.Before(*s.NextBillingDate) {
		return false
	}
	s.Status = StatusExpired
	s.UpdatedAt = now
	return true
}

// RecordError stamps a failure descriptor onto the state.
func (s *State) RecordError(kind Kind, message string) {
	s.LastError = &ErrorDescriptor{Kind: kind, Message: message}
	s.UpdatedAt = time.Now()
}

// ClearError removes the last failure descriptor.
func (s *State) ClearError() {
	s.LastError = nil
}

// MarkSynced records a successful remote reconciliation. LastSyncedAt is
// monotonically non-decreasing across successful syncs.
func (s *State) MarkSynced(now time.Time) {
	if s.LastSyncedAt == nil || now.After(*s.LastSyncedAt) {
		t := now
		s.LastSyncedAt = &t
	}
	s.HasUnsyncedLocalChanges = false
	s.ClearError()
	s.UpdatedAt = now
}

// MarkPending flags a local mutation that has not been confirmed against the
// remote source.
func (s *State) MarkPending(kind Kind, message string) {
	s.HasUnsyncedLocalChanges = true
	s.RecordError(kind, message)
}
