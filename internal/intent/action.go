// Package intent maps free-form chat text to one of a closed set of
// administrative actions.
//
// Each action that can be reached through natural language owns a phrase set
// and a threshold. A message is scored against the phrase sets in a fixed
// priority order and the first action whose score strictly exceeds its own
// threshold wins. Scores combine a surface fuzzy match with a semantic
// embedding match, so both typos and paraphrases are tolerated.
package intent

// Action is the administrative operation a message resolves to.
type Action int

const (
	Unrecognized Action = iota
	Start
	Stop
	Status
	CheckOccupants
	Backup
	Help
	Greet
	Terminate
	EasterEgg
)

var actionNames = map[Action]string{
	Unrecognized:   "unrecognized",
	Start:          "start",
	Stop:           "stop",
	Status:         "status",
	CheckOccupants: "check_occupants",
	Backup:         "backup",
	Help:           "help",
	Greet:          "greet",
	Terminate:      "terminate",
	EasterEgg:      "easter_egg",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unrecognized"
}
