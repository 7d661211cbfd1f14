package relay

import "strings"

type CommandKind int

const (
	CmdUnknown CommandKind = iota
	CmdLogin
	CmdMsg
	CmdWho
	CmdDm
	CmdPing
)

func (k CommandKind) String() string {
	switch k {
	case CmdLogin:
		return "login"
	case CmdMsg:
		return "msg"
	case CmdWho:
		return "who"
	case CmdDm:
		return "dm"
	case CmdPing:
		return "ping"
	default:
		return "unknown"
	}
}

// Command is one parsed client instruction. Ephemeral: built per input
// line, never stored.
type Command struct {
	Kind CommandKind
	Name string // LOGIN argument or DM target
	Text string // MSG/DM payload, original case preserved
}

// ParseCommand turns one received line into a Command. The verb is matched
// case-insensitively; the remainder keeps its case. Blank lines produce no
// command at all, reported by the false return. Parsing never fails:
// anything unrecognized comes back as CmdUnknown and the dispatcher
// answers it.
func ParseCommand(line string) (Command, bool) {
	line = strings.TrimSpace(strings.ReplaceAll(line, "\r", ""))
	if line == "" {
		return Command{}, false
	}

	verb := line
	rest := ""
	hasRest := false
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		verb = line[:i]
		rest = strings.TrimSpace(line[i+1:])
		hasRest = true
	}

	switch strings.ToUpper(verb) {
	case "LOGIN":
		if hasRest {
			return Command{Kind: CmdLogin, Name: rest}, true
		}
	case "MSG":
		if hasRest {
			return Command{Kind: CmdMsg, Text: rest}, true
		}
	case "WHO":
		if !hasRest {
			return Command{Kind: CmdWho}, true
		}
	case "DM":
		if hasRest {
			target, text := splitFirst(rest)
			return Command{Kind: CmdDm, Name: target, Text: text}, true
		}
	case "PING":
		if !hasRest {
			return Command{Kind: CmdPing}, true
		}
	}
	return Command{Kind: CmdUnknown}, true
}

// splitFirst splits s on the first whitespace run. The second part is
// empty when there is no second token; the dispatcher reports that as a
// usage error rather than the parser failing.
func splitFirst(s string) (string, string) {
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}
