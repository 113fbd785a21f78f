// Package conversation holds the role-tagged turns exchanged between the user,
// the controller and the language model, and the append-only transcript that
// records them.
package conversation

import "fmt"

// Role identifies who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is a single message in the conversation. Its fields are unexported so
// a turn cannot change once created.
type Turn struct {
	role    Role
	content string
}

func NewTurn(role Role, content string) Turn {
	return Turn{role: role, content: content}
}

func System(content string) Turn {
	return NewTurn(RoleSystem, content)
}

func User(content string) Turn {
	return NewTurn(RoleUser, content)
}

func Assistant(content string) Turn {
	return NewTurn(RoleAssistant, content)
}

func (t Turn) Role() Role {
	return t.role
}

func (t Turn) Content() string {
	return t.content
}

func (t Turn) String() string {
	return fmt.Sprintf("%s: %s", t.role, t.content)
}
