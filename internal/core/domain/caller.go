package domain

// Caller identifies the authenticated principal on whose behalf an operation
// runs. Authentication happens upstream; the value is only recorded.
type Caller struct {
	ID string
}

func (c Caller) String() string {
	if c.ID == "" {
		return "anonymous"
	}
	return c.ID
}
