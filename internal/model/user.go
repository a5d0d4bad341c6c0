// Package model defines the data structures used throughout the application.
package model

// User is a person known to the identity store.
//
// WHY ID int64?
// Users are addressed by a stable numeric identifier. Search treats a purely
// numeric term as a candidate for that identifier, so the type must round-trip
// through strconv without loss.
//
// SortableName is the "Last, First" form shown in rosters. It is optional; when
// empty the display name is used for ordering.
type User struct {
	ID           int64  `json:"id"            db:"id"`
	Name         string `json:"name"          db:"name"`
	SortableName string `json:"sortable_name" db:"sortable_name"`
}

// Pseudonym is a login record for a user. It carries the external system
// (SIS) identifier that search can match against.
type Pseudonym struct {
	ID            string `json:"id"             db:"id"`
	UserID        int64  `json:"user_id"        db:"user_id"`
	UniqueID      string `json:"unique_id"      db:"unique_id"`
	SISUserID     string `json:"sis_user_id"    db:"sis_user_id"`
	WorkflowState string `json:"workflow_state" db:"workflow_state"`
}

// Communication channel path types. Only email channels take part in search.
const (
	PathTypeEmail   = "email"
	PathTypeSMS     = "sms"
	PathTypeTwitter = "twitter"
	PathTypePush    = "push"
)

// CommunicationChannel is a contact address belonging to a user.
type CommunicationChannel struct {
	ID            string `json:"id"             db:"id"`
	UserID        int64  `json:"user_id"        db:"user_id"`
	Path          string `json:"path"           db:"path"`
	PathType      string `json:"path_type"      db:"path_type"`
	WorkflowState string `json:"workflow_state" db:"workflow_state"`
}
