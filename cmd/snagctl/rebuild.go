package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

type rebuildCmd struct{}

func (*rebuildCmd) Name() string {
	return "rebuild"
}

func (*rebuildCmd) Synopsis() string {
	return "truncate and replay a projection"
}

func (*rebuildCmd) Usage() string {
	return `rebuild <projection>:
	truncate the named projection's read models and replay all history
	into them; run "status" to list projection names
`
}

func (*rebuildCmd) SetFlags(f *flag.FlagSet) {}

func (r *rebuildCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	name := f.Arg(0)
	if name == "" {
		return usage("projection name required")
	}
	var result struct {
		Projection string `json:"projection"`
		Streams    int    `json:"streams"`
	}
	if err := call(ctx, "POST", "/projections/"+name+"/rebuild", nil, &result); err != nil {
		return fatal("Rebuild request failed", err)
	}
	fmt.Printf("rebuilt %s from %d streams\n", result.Projection, result.Streams)
	return subcommands.ExitSuccess
}
