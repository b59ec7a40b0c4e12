package types

// Event represents a typed state change emitted by the ledger, treasury or
// configuration surface. Attributes carry the old/new values for parameter
// changes and the identifiers involved in gift transitions.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Attribute returns the named attribute or the empty string when unset.
func (e *Event) Attribute(key string) string {
	if e == nil || e.Attributes == nil {
		return ""
	}
	return e.Attributes[key]
}
