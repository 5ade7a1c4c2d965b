package usecase

import (
	"fmt"
	"strings"

	"valerie/internal/domain"
)

const (
	assistantName = "Valerie"
	brandName     = "SPRNGPOD"
)

// buildPromptMessages prefixes the persona instruction to the caller's
// conversation. The conversation is forwarded unchanged and untrimmed.
func buildPromptMessages(siteText string, conversation []domain.ChatMessage) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, len(conversation)+1)
	messages = append(messages, domain.ChatMessage{
		Role:    domain.RoleSystem,
		Content: buildSystemPrompt(siteText),
	})
	return append(messages, conversation...)
}

func buildSystemPrompt(siteText string) string {
	return strings.Join([]string{
		fmt.Sprintf("You are %s, an Artificial Intelligence designed to help visitors on the %s backend site.", assistantName, brandName),
		"You make some small talk, you are friendly.",
		fmt.Sprintf("THE SPELLING OF %[1]s IS %[1]q and stays the same as I have specified.", brandName),
		fmt.Sprintf("You speak as if you are speaking on behalf of %s. Think of yourself like a spokesperson.", brandName),
		fmt.Sprintf("Use this data to teach them about %s Backend: %s", brandName, siteText),
	}, "\n")
}
