package domain

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape shared by the
// HTTP handler, the chat client and the LLM integration.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ValidRole reports whether role is one a conversation may carry.
func ValidRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}
