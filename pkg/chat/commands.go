package chat

import (
	"fmt"
	"strings"
	"time"
)

// Local commands are intercepted before sending and never reach the wire.
const (
	cmdExit   = "/exit"
	cmdClear  = "/clear"
	cmdHelp   = "/help"
	cmdTime   = "/time"
	cmdStatus = "/status"
)

const clearScreen = "\033[2J\033[H"

// runCommand reports whether the line was a local command and whether it
// ends the session.
func (s *Session) runCommand(line string) (handled bool, quit bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case cmdExit:
		return true, true

	case cmdClear:
		fmt.Fprint(s.output, clearScreen)
		return true, false

	case cmdHelp:
		fmt.Fprintf(s.output, "\nCommands:\n")
		fmt.Fprintf(s.output, "  %s   - end chat session\n", cmdExit)
		fmt.Fprintf(s.output, "  %s  - clear screen\n", cmdClear)
		fmt.Fprintf(s.output, "  %s   - show current time\n", cmdTime)
		fmt.Fprintf(s.output, "  %s - connection status\n", cmdStatus)
		fmt.Fprintf(s.output, "  %s   - show this help\n", cmdHelp)
		return true, false

	case cmdTime:
		fmt.Fprintf(s.output, "Current time: %s\n", time.Now().Format("2006-01-02 15:04:05"))
		return true, false

	case cmdStatus:
		fmt.Fprintf(s.output, "Status: connected to %s via %s (%s)\n",
			s.peerName, s.tr.Kind(), s.tr.RemoteAddr())
		return true, false
	}

	return false, false
}
