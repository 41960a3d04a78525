package tracker

import (
	"strings"

	"github.com/papercomputeco/drift/pkg/conversation"
)

// BuildPrompt renders the prior turns and the new intent as a plain
// User/Assistant transcript ending with an open "Assistant:" line.
func BuildPrompt(history []conversation.Turn, intent string) string {
	var b strings.Builder
	for _, t := range history {
		b.WriteString("User: ")
		b.WriteString(t.User)
		b.WriteString("\nAssistant: ")
		b.WriteString(t.AI)
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(intent)
	b.WriteString("\nAssistant:")
	return b.String()
}
