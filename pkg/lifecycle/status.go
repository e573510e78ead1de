package lifecycle

// Status is the enrollment workflow state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusDropped   Status = "DROPPED"
	StatusCompleted Status = "COMPLETED"
)

// StudentType distinguishes new/transferee students from returning ones.
type StudentType string

const (
	StudentTypeNew StudentType = "new"
	StudentTypeOld StudentType = "old"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusDropped, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether the status ends the lifecycle (DROPPED, COMPLETED).
func (s Status) Terminal() bool {
	return s == StatusDropped || s == StatusCompleted
}

// CanTransition reports whether from -> to is an allowed status change.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case StatusCompleted:
		return true
	case StatusActive, StatusDropped:
		return from == StatusPending
	}
	return false
}

// StatusLabel returns the display label of a status.
func StatusLabel(s Status) string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusActive:
		return "Active"
	case StatusDropped:
		return "Dropped"
	case StatusCompleted:
		return "Completed"
	}
	return string(s)
}
