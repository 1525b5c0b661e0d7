package conversation

import (
	"strconv"
	"strings"
)

// Callback data carried by inline buttons. Actions that target a link or a
// page carry the number after a colon, e.g. "card:42" or "links:1".
const (
	ActionMenu      = "menu"
	ActionShorten   = "shorten"
	ActionLinks     = "links"
	ActionCard      = "card"
	ActionStats     = "stats"
	ActionRefresh   = "refresh"
	ActionRename    = "rename"
	ActionDelete    = "delete"
	ActionDeleteYes = "delete_yes"
	ActionDeleteNo  = "delete_no"
	ActionCancel    = "cancel"
	ActionSkip      = "skip"
	ActionNoop      = "noop"
)

// ActionData encodes an action with its numeric argument.
func ActionData(action string, arg int64) string {
	return action + ":" + strconv.FormatInt(arg, 10)
}

// ParseAction splits callback data into the action and its argument.
// hasArg is false for bare actions.
func ParseAction(data string) (action string, arg int64, hasArg bool) {
	action, raw, found := strings.Cut(data, ":")
	if !found {
		return action, 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return action, 0, false
	}
	return action, n, true
}

// MenuKeyboard is the main menu attached to every terminal message.
func MenuKeyboard() [][]Button {
	return [][]Button{
		{{Label: "My links", Data: ActionData(ActionLinks, 0)}},
		{{Label: "Shorten links", Data: ActionShorten}},
	}
}

func cancelKeyboard() [][]Button {
	return [][]Button{{{Label: "Cancel", Data: ActionCancel}}}
}

func titleKeyboard() [][]Button {
	return [][]Button{{
		{Label: "Skip", Data: ActionSkip},
		{Label: "Cancel", Data: ActionCancel},
	}}
}
