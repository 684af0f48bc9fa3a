package client

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInterpret(t *testing.T) {
	req := require.New(t)

	tests := []struct {
		name   string
		state  State
		input  string
		action Action
	}{
		{
			name:   "Empty input is ignored",
			state:  StateLoggedIn,
			input:  "   ",
			action: Action{Kind: ActionNone},
		},
		{
			name:   "QUIT wins in any state",
			state:  StateNegotiatingName,
			input:  "QUIT",
			action: Action{Kind: ActionQuit},
		},
		{
			name:   "CHANGENAME arms the rename sub-mode",
			state:  StateLoggedIn,
			input:  "CHANGENAME",
			action: Action{Kind: ActionBeginRename},
		},
		{
			name:   "GETNAMES requests the list",
			state:  StateLoggedIn,
			input:  "GETNAMES",
			action: Action{Kind: ActionListNames},
		},
		{
			name:   "Negotiating: free text is a name claim",
			state:  StateNegotiatingName,
			input:  "alice",
			action: Action{Kind: ActionSetName, Text: "alice"},
		},
		{
			name:   "Renaming: free text is the replacement name",
			state:  StateRenaming,
			input:  "bob",
			action: Action{Kind: ActionSetName, Text: "bob"},
		},
		{
			name:   "Logged in: TO prefix is a private message",
			state:  StateLoggedIn,
			input:  "TO:bob:psst over here",
			action: Action{Kind: ActionPrivate, Target: "bob", Text: "psst over here"},
		},
		{
			name:   "Private message text keeps its own colons",
			state:  StateLoggedIn,
			input:  "TO:bob:see you at 10:30",
			action: Action{Kind: ActionPrivate, Target: "bob", Text: "see you at 10:30"},
		},
		{
			name:   "TO with an empty target falls back to broadcast",
			state:  StateLoggedIn,
			input:  "TO::hello",
			action: Action{Kind: ActionBroadcast, Text: "TO::hello"},
		},
		{
			name:   "TO without text falls back to broadcast",
			state:  StateLoggedIn,
			input:  "TO:bob",
			action: Action{Kind: ActionBroadcast, Text: "TO:bob"},
		},
		{
			name:   "Explicit ALL prefix broadcasts the rest",
			state:  StateLoggedIn,
			input:  "ALL: hello everyone",
			action: Action{Kind: ActionBroadcast, Text: "hello everyone"},
		},
		{
			name:   "Plain text broadcasts by default",
			state:  StateLoggedIn,
			input:  "hello everyone",
			action: Action{Kind: ActionBroadcast, Text: "hello everyone"},
		},
		{
			name:   "Closed session ignores chat input",
			state:  StateClosed,
			input:  "hello?",
			action: Action{Kind: ActionNone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req.Equal(tt.action, Interpret(tt.state, tt.input))
		})
	}
}
