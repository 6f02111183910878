package gateway

const (
	statusOnlineReply   = "🟢 The server is currently *ONLINE*, sir."
	statusOfflineReply  = "🔴 I regret to inform you, the server is *OFFLINE* at the moment."
	notOperationalReply = "⚠️ The server is not yet operational, sir."
	easterEggReply      = "@everyone 🛡️ *Initiating Protocol: Avenger Assembly.*\nAll units, report for duty. This is not a drill."
	unrecognizedReply   = "🤔 I'm not sure what you need, sir. Say \"help\" to see what I can do."
)

const helpReply = "**🛠️ Available Commands:**\n" +
	"`/startserver` – Starts the Minecraft server.\n" +
	"`/stopserver` – Stops the Minecraft server.\n" +
	"`/status` – Checks if the server is online.\n" +
	"`/check_players` – Lists who is playing right now.\n" +
	"`/backup` – Archives the world. The server must be offline.\n" +
	"`/terminatejarvis` – Shuts me (the bot) down. Authorized personnel only.\n\n" +
	"You can also say things like:\n" +
	"- *\"Open the gates\"* to start the server\n" +
	"- *\"Shut the gates\"* to stop the server\n" +
	"- *\"Is the server up?\"* to check status\n" +
	"- *\"Who's online?\"* to list players\n" +
	"- *\"Assemble the Avengers\"* for a fun surprise 😉\n"
