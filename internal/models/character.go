package models

import "fmt"

type Role string

const (
	RoleKiller  Role = "Killer"
	RoleVictim  Role = "Victim"
	RoleSuspect Role = "Suspect"
)

// Character is one member of the cast. The backstory is immutable after
// generation and is the source text for context retrieval during interviews.
type Character struct {
	Role      Role   `json:"role"`
	Name      string `json:"name"`
	Backstory string `json:"backstory"`
}

// Persona formats the complete persona for prompting. It is derived on every
// call rather than stored.
func (c Character) Persona() string {
	return fmt.Sprintf("Name: %s\nRole: %s\nBackstory: %s\n", c.Name, c.Role, c.Backstory)
}
