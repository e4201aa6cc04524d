package capture

import (
	"context"
	"os/exec"
	"syscall"
	"time"
)

// ExecBackend records by spawning an external capture tool (arecord by
// default) that appends to the target file until terminated.
type ExecBackend struct {
	Command string
	Args    []string // appended after the output path
}

func NewExecBackend() *ExecBackend {
	return &ExecBackend{
		Command: "arecord",
		Args:    []string{"-f", "cd", "-t", "wav"},
	}
}

type execRecording struct {
	cmd *exec.Cmd
}

func (b *ExecBackend) Start(ctx context.Context, path string) (Recording, error) {
	args := append([]string{}, b.Args...)
	args = append(args, path)

	cmd := exec.CommandContext(ctx, b.Command, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execRecording{cmd: cmd}, nil
}

func (r *execRecording) Stop() error {
	// SIGTERM lets the tool write its header/trailer before exiting
	if err := r.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		_ = r.cmd.Process.Kill()
	}

	done := make(chan error, 1)
	go func() { done <- r.cmd.Wait() }()

	select {
	case <-done:
		return nil
	case <-time.After(5 * time.Second):
		_ = r.cmd.Process.Kill()
		<-done
		return nil
	}
}
