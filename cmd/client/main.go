package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"flowsync/internal/client/api"
	"flowsync/internal/client/cli"
	"flowsync/internal/client/iocli"
	"flowsync/internal/client/queue"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")
	dbPath := flag.String("db", "flowsync-client.db", "Path to local database")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage()
		os.Exit(1)
	}

	q, err := queue.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := q.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close database: %v\n", err)
		}
	}()

	c := cli.New(api.NewClient(*serverURL), q, iocli.NewStdio())

	if err := c.Run(context.Background(), args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("flowsync client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
