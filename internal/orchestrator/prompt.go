package orchestrator

import (
	"fmt"
	"strings"

	"github.com/kaihuan-huang/HR-AI/internal/domain"
	"github.com/kaihuan-huang/HR-AI/internal/llm"
)

const refinePrompt = `You are an AI assistant helping improve a sequence of steps. Review the current sequence and the user's feedback and suggest improvements.

Current sequence:
%s

Guidelines:
1. Keep the step numbering format (Step X:)
2. Make specific suggestions for improvements
3. Explain your reasoning briefly
4. Ask clarifying questions if needed`

const draftPrompt = `You are an AI assistant helping create a sequence of steps. Guide the user through creating an effective sequence.

Guidelines:
1. If this is a new conversation, ask about:
   - The goal or purpose of the sequence
   - The target audience
   - The desired tone and style
   - The preferred number of steps
2. Once you have enough information, generate a sequence using the "Step X:" format
3. After generating, ask whether they would like any adjustments
4. Keep responses clear and actionable`

// SystemPrompt returns the instruction for a completion. Non-blank workspace
// text selects the refinement prompt with the sequence embedded verbatim.
func SystemPrompt(workspace string) string {
	if strings.TrimSpace(workspace) == "" {
		return draftPrompt
	}
	return fmt.Sprintf(refinePrompt, workspace)
}

// RecentMessages maps the last n persistable turns to provider messages in
// chronological order. n <= 0 keeps nothing.
func RecentMessages(turns []domain.Turn, n int) []llm.Message {
	if n <= 0 {
		return nil
	}

	msgs := make([]llm.Message, 0, min(n, len(turns)))
	for i := len(turns) - 1; i >= 0 && len(msgs) < n; i-- {
		t := turns[i]
		if !t.Role.Persistable() {
			continue
		}
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Content})
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs
}
