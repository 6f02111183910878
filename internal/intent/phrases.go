package intent

// PhraseSet holds the reference strings for one action. Order is irrelevant.
type PhraseSet []string

var startPhrases = PhraseSet{
	"open the gates", "power up", "boot up", "start", "start this thing up", "launch",
	"ignite", "fire up", "bring it online", "activate", "wake up", "initiate",
	"turn on", "boot the system", "get it running", "power on", "open",
	"start the server", "bring the server online", "boot the server up", "fire up the server",
	"get the server running", "bring it to life", "kickstart the server", "open up the server",
	"run the server", "activate the server", "power up the server", "let's go online",
	"bring it back online", "initiate the server", "let the server run", "let's get it started",
}

var stopPhrases = PhraseSet{
	"shut the gates", "close it down", "shut down", "power down", "turn off",
	"stop", "terminate", "deactivate", "put it to sleep", "hibernate", "power off",
	"shut everything down", "end the session", "turn it off", "go to sleep", "close",
	"shut the server down", "turn off the server", "shut the system", "power off the server",
	"turn the server off", "cut the power", "end the server session", "terminate the server",
	"stop the machine", "deactivate the server", "power down the system", "close the server",
	"shutdown sequence", "take the server offline", "stop the operation", "halt the server",
	"yamete kudasai", "yamete",
}

var statusPhrases = PhraseSet{
	"status report", "check status", "server status", "how's the server", "is the server online",
	"is the server up", "server health", "current server state", "server status check", "is it on",
	"stats", "status", "what's the server status", "is the server up and running",
	"server health check", "is the server online or offline", "check the server", "how is the server",
	"current server status", "how's the server doing", "is the server active", "what's the server state",
	"server condition check", "can you check if the server is up", "what's the condition of the server",
}

var terminatePhrases = PhraseSet{
	"shut yourself down", "turn off jarvis", "power down jarvis", "terminate yourself", "end the bot session",
	"stop jarvis", "close the bot", "shutdown jarvis", "quit jarvis", "end the bot", "end yourself",
	"clean state protocol",
}

var helpPhrases = PhraseSet{
	"help", "assist me", "what can you do", "commands", "list commands",
	"i need help", "what are your functions", "how do i use you",
	"show me your commands", "help me out", "can you help me", "jarvis help",
}

var occupantPhrases = PhraseSet{
	"check players", "who's online", "list players", "show me the players", "player list",
	"who's in the game", "who's playing", "current players", "active players", "players online",
	"show me who's online", "list of players", "check current players", "who's unemployed", "who's gaming",
}

var greetPhrases = PhraseSet{
	"hello", "hi", "hey", "good morning", "good afternoon", "good evening", "howdy", "yo", "sup", "greetings",
}
