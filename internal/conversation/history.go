package conversation

import "github.com/supportbot-dev/supportbot/internal/backend"

// MapHistory turns the backend's stored history into a message log.
//
// The backend stores turns flat and untagged, alternating user query and bot
// reply, so position is the only role signal: even indexes are user
// messages and odd indexes are bot messages. A history that starts with a bot
// turn cannot be represented and will be misattributed.
func MapHistory(entries []backend.HistoryEntry) []Message {
	msgs := make([]Message, 0, len(entries))
	for i, entry := range entries {
		role := RoleUser
		if i%2 == 1 {
			role = RoleBot
		}
		msgs = append(msgs, Message{Role: role, Text: entry.Text})
	}
	return msgs
}
