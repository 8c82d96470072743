// Package pager shells out to the user's configured pager
// ($GIT_PAGER/$PAGER/core.pager) for long query output — an external
// collaborator per spec.md §6, outside the core's testable surface but
// still part of a complete CLI.
package pager

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Page runs command (a shell command string, e.g. "less -FRX") with
// content on its stdin, its stdout connected to out and its stderr to
// the process's own. An empty command writes content directly to out
// without paging.
func Page(out io.Writer, command string, content []byte) error {
	if command == "" {
		_, err := out.Write(content)

		return err
	}

	cmd := exec.Command("sh", "-c", command) //nolint:gosec // command is operator-configured (core.pager/$PAGER), not user input
	cmd.Stdin = bytes.NewReader(content)
	cmd.Stdout = out
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run pager %q: %w", command, err)
	}

	return nil
}
