package parser

import "regexp"

// raidPattern matches "@raider <verb> @target". The raider is one handle,
// optionally followed by a second word ("@Alice W"), and prefers the shortest
// form so several raids on one line split at each verb. Chatter between the
// raider and the verb ("@Alice pour le raid @Bob") is not a raid. The target
// runs to the next @ and is cut at its first whitespace afterwards.
var raidPattern = regexp.MustCompile(
	`(?i)@([^@\s]+(?:[ \t]+[^@\s]+)??)\s+(?:(?:a|à)\s+raid|raid|vers|chez)\s+@([^@\n]*)`,
)
