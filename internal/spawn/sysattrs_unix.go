//go:build !windows

package spawn

import (
	"context"
	"os/exec"
	"syscall"
)

// configureSysProcAttr puts detached children in a new session so they keep
// running after the bot exits; attached children get their own process group.
func configureSysProcAttr(cmd *exec.Cmd, detached bool) {
	attrs := &syscall.SysProcAttr{}
	if detached {
		attrs.Setsid = true
	} else {
		attrs.Setpgid = true
	}
	cmd.SysProcAttr = attrs
}

func shellCommand(ctx context.Context, script string) *exec.Cmd {
	// #nosec G204
	return exec.CommandContext(ctx, "/bin/sh", "-c", script)
}
