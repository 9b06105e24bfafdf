package bcibridge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/usnistgov/bcibridge/openbci"
)

// CommandKind says how an operator line is to be treated.
type CommandKind int

// Names for the possible values of CommandKind
const (
	EmptyCommand      CommandKind = iota // Blank line: a no-op
	RawCommand                           // Characters relayed to the board verbatim
	StructuredCommand                    // Line beginning with the command prefix
)

// CommandPrefix starts every structured command.
const CommandPrefix = "/"

// Verbs of structured commands
const (
	VerbStart = "start"
	VerbStop  = "stop"
	VerbExit  = "exit"
	VerbHelp  = "help"
	VerbTest  = "test"
	VerbLoc   = "loc"
)

// argVerbs take an argument, which may follow with or without a space.
var argVerbs = []string{VerbTest, VerbLoc}

var plainVerbs = map[string]bool{
	VerbStart: true,
	VerbStop:  true,
	VerbExit:  true,
	VerbHelp:  true,
}

// Command is one parsed line of operator input. A structured command whose first token
// is not a known verb has Kind StructuredCommand and an empty Verb.
type Command struct {
	Kind CommandKind
	Verb string
	Arg  string
	Raw  string
}

// ParseCommand classifies one operator line. Verbs are matched against the first token
// exactly, so "/stopping" is not "/stop".
func ParseCommand(line string) Command {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return Command{Kind: EmptyCommand, Raw: line}
	}
	if !strings.HasPrefix(line, CommandPrefix) {
		return Command{Kind: RawCommand, Raw: line}
	}

	cmd := Command{Kind: StructuredCommand, Raw: line}
	body := strings.TrimSpace(strings.TrimPrefix(line, CommandPrefix))
	token, rest, _ := strings.Cut(body, " ")
	if plainVerbs[token] {
		cmd.Verb = token
		cmd.Arg = strings.TrimSpace(rest)
		return cmd
	}
	for _, verb := range argVerbs {
		if strings.HasPrefix(token, verb) {
			cmd.Verb = verb
			cmd.Arg = strings.TrimSpace(strings.TrimPrefix(body, verb))
			return cmd
		}
	}
	return cmd
}

// Recognized is true for structured commands with a known verb.
func (c Command) Recognized() bool {
	return c.Kind == StructuredCommand && c.Verb != ""
}

// TestPattern returns the test-signal id of a test command.
func (c Command) TestPattern() (int, error) {
	pattern, err := strconv.Atoi(c.Arg)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrUnknownTestSignal, c.Arg)
	}
	if _, ok := openbci.TestSignals[pattern]; !ok {
		return 0, fmt.Errorf("%w: %d (valid signals go from 0 to %d)", ErrUnknownTestSignal,
			pattern, len(openbci.TestSignals)-1)
	}
	return pattern, nil
}
