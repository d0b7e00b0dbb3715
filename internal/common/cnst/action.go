package cnst

// ActionType represents the kind of change written to a visitor collection
type ActionType string

const (
	// ActionCreate represents a document that was written for the first time
	ActionCreate ActionType = "create"
	// ActionUpdate represents a patch of an existing document
	ActionUpdate ActionType = "update"
	// ActionDelete represents a removed document
	ActionDelete ActionType = "delete"
)
