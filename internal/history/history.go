// Package history models conversation turns and trims them to a token budget
// before prompt composition.
package history

import "github.com/sitebot/sitebot/internal/token"

// Role discriminates who produced a conversation turn.
type Role string

const (
	RoleUser   Role = "user"
	RoleSystem Role = "system"
)

// Message is one turn in a chat history, oldest first.
type Message struct {
	Role    Role
	Content string
}

// Trim drops messages from the front (oldest) until the total token count of
// the survivors fits within budget. Survivor order is preserved and messages
// are never mutated. If even the newest message alone exceeds the budget the
// result is empty; trimming never looks inside a message.
func Trim(msgs []Message, budget int, codec token.Codec) []Message {
	total := 0
	counts := make([]int, len(msgs))
	for i, m := range msgs {
		counts[i] = codec.Count(m.Content)
		total += counts[i]
	}

	start := 0
	for total > budget {
		if start >= len(msgs) {
			// Nothing left to drop.
			return nil
		}
		total -= counts[start]
		start++
	}
	if start == len(msgs) {
		return nil
	}
	return msgs[start:]
}
