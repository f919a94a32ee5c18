package types

// Event represents a typed event emitted during settlement state transitions.
// Attributes carry machine-readable values suitable for audit indexing.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
