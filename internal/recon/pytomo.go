package recon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/exec"
	"strings"
)

// PyTomoEngine runs reconstructions through a PyTomography bridge script.
// The request is written to the script's stdin as JSON; the script answers
// with a single JSON object on stdout carrying the output directory or an
// error message.
type PyTomoEngine struct {
	// Python is the interpreter to invoke, "python3" when empty.
	Python string
	// Script is the path to the bridge script.
	Script string
}

// NewPyTomoEngine creates an engine around the given bridge script.
func NewPyTomoEngine(python, script string) *PyTomoEngine {
	if python == "" {
		python = "python3"
	}
	return &PyTomoEngine{Python: python, Script: script}
}

// bridgeReply is the bridge script's stdout contract.
type bridgeReply struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// Reconstruct validates the request, runs the bridge and returns the
// reconstructed volume directory it reports.
func (e *PyTomoEngine) Reconstruct(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if e.Script == "" {
		return "", fmt.Errorf("pytomography bridge: no script configured")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	log.Printf("recon: running %s %s", e.interpreter(), e.Script)
	cmd := exec.CommandContext(ctx, e.interpreter(), e.Script)
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pytomography bridge: %w: %s", err, lastLine(&stderr))
	}

	var reply bridgeReply
	if err := json.Unmarshal(lastJSON(&stdout), &reply); err != nil {
		return "", fmt.Errorf("pytomography bridge: unreadable reply: %w", err)
	}
	if reply.Error != "" {
		return "", fmt.Errorf("pytomography bridge: %s", reply.Error)
	}
	if reply.Output == "" {
		return "", fmt.Errorf("pytomography bridge: reply has no output directory")
	}
	return reply.Output, nil
}

func (e *PyTomoEngine) interpreter() string {
	if e.Python == "" {
		return "python3"
	}
	return e.Python
}

// lastJSON returns the last non-empty line of the buffer. The bridge prints
// progress chatter before its reply, so only the final line is the contract.
func lastJSON(buf *bytes.Buffer) []byte {
	return []byte(lastLine(buf))
}

func lastLine(buf *bytes.Buffer) string {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
