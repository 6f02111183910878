//go:build windows

package spawn

import (
	"context"
	"os/exec"
	"syscall"
)

const (
	createNewProcessGroup = 0x00000200
	createNewConsole      = 0x00000010
)

// configureSysProcAttr gives detached children their own console window so
// the server survives the bot; attached children only get a process group.
func configureSysProcAttr(cmd *exec.Cmd, detached bool) {
	flags := uint32(createNewProcessGroup)
	if detached {
		flags |= createNewConsole
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: flags}
}

func shellCommand(ctx context.Context, script string) *exec.Cmd {
	// #nosec G204
	return exec.CommandContext(ctx, "cmd", "/c", script)
}
