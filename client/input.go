package client

import "strings"

// ActionKind classifies what one line of user input asks for.
type ActionKind int

const (
	// ActionNone: empty input, or input in a state that ignores it.
	ActionNone ActionKind = iota
	// ActionQuit: voluntary disconnect.
	ActionQuit
	// ActionBeginRename: arm the rename sub-mode; nothing is sent yet.
	ActionBeginRename
	// ActionListNames: request the online-name list.
	ActionListNames
	// ActionSetName: the input is a name claim (initial or rename).
	ActionSetName
	// ActionPrivate: addressed send.
	ActionPrivate
	// ActionBroadcast: broadcast send (explicit ALL: prefix or default).
	ActionBroadcast
)

// Action is one interpreted line of user input.
type Action struct {
	Kind   ActionKind
	Target string
	Text   string
}

// Interpret maps a raw console line to an action given the session state.
// The command words QUIT, CHANGENAME and GETNAMES always win; otherwise the
// state decides whether the line is a name claim or a chat line, and the
// "TO:name:text" and "ALL:" prefixes pick the chat delivery mode.
func Interpret(state State, input string) Action {
	input = strings.TrimSpace(input)
	if input == "" {
		return Action{Kind: ActionNone}
	}

	switch input {
	case "QUIT":
		return Action{Kind: ActionQuit}
	case "CHANGENAME":
		return Action{Kind: ActionBeginRename}
	case "GETNAMES":
		return Action{Kind: ActionListNames}
	}

	switch state {
	case StateNegotiatingName, StateRenaming:
		return Action{Kind: ActionSetName, Text: input}

	case StateLoggedIn:
		if target, text, ok := parseAddressed(input); ok {
			return Action{Kind: ActionPrivate, Target: target, Text: text}
		}
		if rest, ok := strings.CutPrefix(input, "ALL:"); ok {
			return Action{Kind: ActionBroadcast, Text: strings.TrimSpace(rest)}
		}
		return Action{Kind: ActionBroadcast, Text: input}
	}

	return Action{Kind: ActionNone}
}

// parseAddressed recognizes the private-message syntax "TO:name:text". A
// missing or empty target means the line is not addressed at all.
func parseAddressed(input string) (string, string, bool) {
	chunks := strings.SplitN(input, ":", 3)
	if len(chunks) != 3 || chunks[0] != "TO" {
		return "", "", false
	}
	target := strings.TrimSpace(chunks[1])
	if target == "" {
		return "", "", false
	}
	return target, strings.TrimSpace(chunks[2]), true
}
