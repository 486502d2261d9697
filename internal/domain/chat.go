package domain

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one role-tagged message in a conversation. Immutable once created.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// History is an ordered chat transcript, oldest first.
type History []Turn

// WithoutSystem returns the turns with any system entries removed. The chat
// adapters synthesize their own system context on every call, so system turns
// must never be forwarded.
func (h History) WithoutSystem() History {
	out := make(History, 0, len(h))
	for _, t := range h {
		if t.Role != RoleSystem {
			out = append(out, t)
		}
	}
	return out
}
