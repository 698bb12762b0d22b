// Package relay consumes the two persona chat streams of a duel and keeps an
// incrementally growing transcript for each.
package relay

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Persona identifies one of the two chat panes.
type Persona string

const (
	PersonaA Persona = "a"
	PersonaB Persona = "b"
)

// Personas lists the panes in display order.
var Personas = [2]Persona{PersonaA, PersonaB}

// State is one pane's conversation and whether a reply is streaming in.
type State struct {
	Messages  []Message `json:"messages"`
	IsLoading bool      `json:"loading"`
}

func (s State) clone() State {
	out := State{IsLoading: s.IsLoading}
	if s.Messages != nil {
		out.Messages = make([]Message, len(s.Messages))
		copy(out.Messages, s.Messages)
	}
	return out
}

// Update is emitted every time a pane's state changes.
type Update struct {
	Persona Persona
	State   State
}
