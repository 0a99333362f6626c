//go:build !windows

package doctor

import (
	"os"
	"os/exec"

	"golang.org/x/term"
)

// resetTerminal undoes echo changes left behind by key presses the hotkey
// check swallowed.
func resetTerminal() {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return
	}
	cmd := exec.Command("stty", "sane")
	cmd.Stdin = os.Stdin
	cmd.Run()
}
