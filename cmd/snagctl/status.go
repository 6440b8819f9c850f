package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

type statusCmd struct{}

func (*statusCmd) Name() string {
	return "status"
}

func (*statusCmd) Synopsis() string {
	return "print server status"
}

func (*statusCmd) Usage() string {
	return `status:
	print the server version and its registered projections
`
}

func (*statusCmd) SetFlags(f *flag.FlagSet) {}

func (s *statusCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var status struct {
		Version     string   `json:"version"`
		BuildDate   string   `json:"buildDate"`
		Projections []string `json:"projections"`
	}
	if err := call(ctx, "GET", "/status", nil, &status); err != nil {
		return fatal("Status request failed", err)
	}
	fmt.Printf("version: %s\n", status.Version)
	if status.BuildDate != "" {
		fmt.Printf("built:   %s\n", status.BuildDate)
	}
	fmt.Println("projections:")
	for _, name := range status.Projections {
		fmt.Printf("  %s\n", name)
	}
	return subcommands.ExitSuccess
}
