package main

import (
	"context"
	"flag"
	"net/url"
	"strings"

	"github.com/google/subcommands"
)

type lookupCmd struct {
	refresh bool
}

func (*lookupCmd) Name() string {
	return "lookup"
}

func (*lookupCmd) Synopsis() string {
	return "probe a lookup cache entry"
}

func (*lookupCmd) Usage() string {
	return `lookup [flags] <domain | local@domain>:
	print the cached lookup record for a subdomain (bare domain) or a
	chaos address (full address)
`
}

func (l *lookupCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&l.refresh, "refresh", false, "bypass the cache and re-read the read model")
}

func (l *lookupCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	key := f.Arg(0)
	if key == "" {
		return usage("domain or address required")
	}
	path := "/lookup/subdomains/"
	if strings.Contains(key, "@") {
		path = "/lookup/addresses/"
	}
	path += url.PathEscape(key)
	if l.refresh {
		path += "?refresh=1"
	}
	var record map[string]interface{}
	if err := call(ctx, "GET", path, nil, &record); err != nil {
		return fatal("Lookup request failed", err)
	}
	if err := printJSON(record); err != nil {
		return fatal("Error", err)
	}
	return subcommands.ExitSuccess
}
