package intent

import "strings"

var commands = map[string]Action{
	"startserver":     Start,
	"stopserver":      Stop,
	"status":          Status,
	"check_players":   CheckOccupants,
	"backup":          Backup,
	"terminatejarvis": Terminate,
	"help":            Help,
}

// ParseCommand recognises an explicit command word such as "/backup" or
// "stopserver@jarvis_bot". Only the first word of text is considered.
func ParseCommand(text string) (Action, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Unrecognized, false
	}
	word := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	action, ok := commands[strings.ToLower(word)]
	return action, ok
}

// CommandNames lists the accepted command words.
func CommandNames() []string {
	return []string{"startserver", "stopserver", "status", "check_players", "backup", "terminatejarvis", "help"}
}
