package main

import (
	"context"
	"flag"
	"net/url"

	"github.com/google/subcommands"
)

type resolveCmd struct{}

func (*resolveCmd) Name() string {
	return "resolve"
}

func (*resolveCmd) Synopsis() string {
	return "run a recipient address through the ingestion resolver"
}

func (*resolveCmd) Usage() string {
	return `resolve <local@domain>:
	print the routing decision for a recipient address
	exit status will be 1 if the address would be rejected, otherwise 0
`
}

func (*resolveCmd) SetFlags(f *flag.FlagSet) {}

func (r *resolveCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	address := f.Arg(0)
	if address == "" {
		return usage("recipient address required")
	}
	var decision struct {
		Accept      bool   `json:"accept"`
		Reason      string `json:"reason"`
		SubdomainID string `json:"subdomainId"`
		TenantID    string `json:"tenantId"`
		ChaosMode   string `json:"chaosMode"`
	}
	if err := call(ctx, "GET", "/resolve/"+url.PathEscape(address), nil, &decision); err != nil {
		return fatal("Resolve request failed", err)
	}
	if err := printJSON(decision); err != nil {
		return fatal("Error", err)
	}
	if !decision.Accept {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
