package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"stagehand/internal/turn"
)

// terminalConfirmer prompts on stdin/stderr for destructive tool calls.
type terminalConfirmer struct {
	in *bufio.Reader
}

func newTerminalConfirmer() *terminalConfirmer {
	return &terminalConfirmer{in: bufio.NewReader(os.Stdin)}
}

var _ turn.Confirmer = (*terminalConfirmer)(nil)

func (c *terminalConfirmer) Confirm(toolName string, input json.RawMessage) turn.Decision {
	yellow := color.New(color.FgYellow)
	yellow.Fprintf(os.Stderr, "\nAgent wants to run %s:\n", toolName)
	fmt.Fprintf(os.Stderr, "  %s\n", summarizeInput(input))
	fmt.Fprint(os.Stderr, "[y]es / [n]o / [a]bort / trust for [s]ession / [p]roject / [g]lobal: ")

	line, err := c.in.ReadString('\n')
	if err != nil {
		return turn.DecisionAbort
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return turn.DecisionYes
	case "a", "abort":
		return turn.DecisionAbort
	case "s", "session":
		return turn.DecisionTrustSession
	case "p", "project":
		return turn.DecisionTrustProject
	case "g", "global":
		return turn.DecisionTrustGlobal
	default:
		return turn.DecisionNo
	}
}

// summarizeInput renders a tool input compactly for the prompt.
func summarizeInput(input json.RawMessage) string {
	var params map[string]any
	if err := json.Unmarshal(input, &params); err != nil {
		return string(input)
	}
	if cmd, ok := params["command"].(string); ok {
		return cmd
	}
	if path, ok := params["path"].(string); ok {
		return path
	}
	out, _ := json.Marshal(params)
	return string(out)
}
