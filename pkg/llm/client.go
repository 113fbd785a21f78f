// Package llm adapts language-model providers to a single capability: send an
// ordered sequence of conversation turns and receive one assistant turn.
package llm

import (
	"context"
	"strings"

	"github.com/pvaezi/sql-gpt/pkg/conversation"
)

// Client is the language-model capability consumed by the agent.
type Client interface {
	// Invoke sends the turns in order and returns the model's reply as an
	// assistant turn. Errors are returned as-is; no retry happens here.
	Invoke(ctx context.Context, turns []conversation.Turn) (conversation.Turn, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, turns []conversation.Turn) (conversation.Turn, error)

func (f ClientFunc) Invoke(ctx context.Context, turns []conversation.Turn) (conversation.Turn, error) {
	return f(ctx, turns)
}

// respondInstruction is sent as a final user message when a provider requires
// the conversation to end on a user turn.
const respondInstruction = "Respond to the conversation above."

type chatMessage struct {
	Role    conversation.Role
	Content string
}

// normalize folds turns into the shape chat APIs with a separate system prompt
// expect: leading system turns become the system prompt, later system turns
// are relayed as user text, blank messages are dropped, consecutive same-role
// messages are merged, and the sequence starts and ends on a user message.
func normalize(turns []conversation.Turn) (string, []chatMessage) {
	var system []string
	i := 0
	for ; i < len(turns) && turns[i].Role() == conversation.RoleSystem; i++ {
		system = append(system, turns[i].Content())
	}

	var msgs []chatMessage
	for _, t := range turns[i:] {
		role := t.Role()
		content := t.Content()
		// Chat APIs reject blank text blocks.
		if strings.TrimSpace(content) == "" {
			continue
		}
		if role == conversation.RoleSystem {
			role = conversation.RoleUser
			content = "System: " + content
		}
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content += "\n\n" + content
			continue
		}
		msgs = append(msgs, chatMessage{Role: role, Content: content})
	}

	if len(msgs) == 0 || msgs[0].Role != conversation.RoleUser {
		msgs = append([]chatMessage{{Role: conversation.RoleUser, Content: respondInstruction}}, msgs...)
	}
	if msgs[len(msgs)-1].Role != conversation.RoleUser {
		msgs = append(msgs, chatMessage{Role: conversation.RoleUser, Content: respondInstruction})
	}

	return strings.Join(system, "\n\n"), msgs
}
