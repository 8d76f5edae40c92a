package agent

import "tabletop/internal/llm"

// estimateTokens provides a rough token estimate (4 chars ≈ 1 token).
func estimateTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content) / 4
	}
	return total
}

// trimHistory drops the oldest turns until the estimate fits budget. The
// trimmed history never starts with an assistant turn. A budget of zero or
// less keeps everything.
func trimHistory(history []Message, budget int) []Message {
	if budget <= 0 || estimateTokens(history) <= budget {
		return history
	}
	start := 0
	for start < len(history) && estimateTokens(history[start:]) > budget {
		start++
	}
	for start < len(history) && history[start].Role != "user" {
		start++
	}
	return history[start:]
}

func toLLMMessages(history []Message, userText string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	return append(msgs, llm.Message{Role: "user", Content: userText})
}
