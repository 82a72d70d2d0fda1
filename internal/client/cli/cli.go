package cli

import (
	"context"
	"fmt"

	"flowsync/internal/client/api"
	"flowsync/internal/client/iocli"
	"flowsync/internal/client/queue"
)

// Cli wires the API client, the offline queue and terminal IO together.
type Cli struct {
	apiClient *api.Client
	queue     *queue.Queue
	io        iocli.IO
}

// New creates a new CLI.
func New(apiClient *api.Client, q *queue.Queue, io iocli.IO) *Cli {
	return &Cli{
		apiClient: apiClient,
		queue:     q,
		io:        io,
	}
}

// PrintUsage prints command help.
func PrintUsage() {
	fmt.Println("flowsync client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  flowsync [OPTIONS] COMMAND")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version        Show version information")
	fmt.Println("  --server URL     Server URL (default: http://localhost:8080)")
	fmt.Println("  --db PATH        Path to local database (default: flowsync-client.db)")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  register                      Register a new account")
	fmt.Println("  login                         Login to server")
	fmt.Println("  logout                        Logout and revoke tokens")
	fmt.Println("  status                        Show session and pending queue status")
	fmt.Println("  add <title>                   Add a new flow (queued until sync)")
	fmt.Println("  log <flow-id> <date> [note]   Log an entry against a flow")
	fmt.Println("  list                          List flows from the server")
	fmt.Println("  rm <flow-id>                  Delete a flow (queued until sync)")
	fmt.Println("  sync                          Push pending operations and pull changes")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  flowsync register")
	fmt.Println("  flowsync add \"Morning run\"")
	fmt.Println("  flowsync log f3b1... 2026-08-30 \"5km, easy pace\"")
	fmt.Println("  flowsync sync")
}

// Run dispatches a command.
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		return c.runRegister(ctx)
	case "login":
		return c.runLogin(ctx)
	case "logout":
		return c.runLogout(ctx)
	case "status":
		return c.runStatus(ctx)
	case "add":
		return c.runAdd(ctx, args)
	case "log":
		return c.runLog(ctx, args)
	case "list":
		return c.runList(ctx)
	case "rm":
		return c.runRm(ctx, args)
	case "sync":
		return c.runSync(ctx)
	default:
		PrintUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}
