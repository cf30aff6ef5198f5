package executor

import "context"

// Executor defines the interface for executing external commands
type Executor interface {
	Execute(ctx context.Context, name string, args ...string) (string, error)
	ExecuteInDir(ctx context.Context, dir string, name string, args ...string) (string, error)
	// Start launches a long-running command without waiting for it to exit.
	Start(ctx context.Context, name string, args ...string) (Process, error)
	LookPath(name string) (string, error)
}

// Process is a started child command.
type Process interface {
	// Stop terminates the process and waits for it to exit.
	Stop() error
	// Exited is closed once the process has exited on its own or after Stop.
	Exited() <-chan struct{}
}
