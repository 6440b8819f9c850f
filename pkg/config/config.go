// Package config processes the snagmail environment configuration.
package config

import (
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	prefix      = "snagmail"
	tableFormat = `Snagmail is configured via the environment. The following environment
variables can be used:

KEY	DEFAULT	REQUIRED	DESCRIPTION
{{range .}}{{usage_key .}}	{{usage_default .}}	{{usage_required .}}	{{usage_description .}}
{{end}}`
)

var (
	// Version of this build, set by main
	Version = ""

	// BuildDate for this build, set by main
	BuildDate = ""
)

// Root wraps all other configurations.
type Root struct {
	LogLevel  string `required:"true" default:"INFO" desc:"DEBUG, INFO, WARN, or ERROR"`
	EventLog  EventLog
	ReadModel ReadModel
	Cache     Cache
	Bus       Bus
	Web       Web
}

// EventLog contains the append-only event log configuration.
type EventLog struct {
	Type string `required:"true" default:"memory" desc:"Log type: sqlite or memory"`
	Path string `default:"/tmp/snagmail/events.db" desc:"SQLite event log path"`
}

// ReadModel contains the read-model document store configuration.
type ReadModel struct {
	Type string `required:"true" default:"memory" desc:"Store type: sqlite or memory"`
	Path string `default:"/tmp/snagmail/readmodels.db" desc:"SQLite read-model store path"`
}

// Cache contains the ingestion lookup cache configuration.
type Cache struct {
	Addr      string        `desc:"Redis host:port, empty disables caching"`
	Prefix    string        `required:"true" default:"snag" desc:"Redis key prefix"`
	TTL       time.Duration `default:"0s" desc:"Entry lifetime, 0 means until invalidated"`
	ScanCount int64         `required:"true" default:"100" desc:"SCAN batch size for pattern invalidation"`
}

// Bus contains the integration event bus configuration.
type Bus struct {
	History int `required:"true" default:"100" desc:"Integration events replayed to new subscribers"`
}

// Web contains the admin HTTP server configuration.
type Web struct {
	Addr string `required:"true" default:"0.0.0.0:9000" desc:"Admin API IP4 host:port"`
}

// Process loads and parses configuration from the environment.
func Process() (*Root, error) {
	c := &Root{}
	err := envconfig.Process(prefix, c)
	return c, err
}

// Usage prints out the envconfig usage to Stderr.
func Usage() {
	tabs := tabwriter.NewWriter(os.Stderr, 1, 0, 4, ' ', 0)
	if err := envconfig.Usagef(prefix, &Root{}, tabs, tableFormat); err != nil {
		log.Fatalf("Unable to parse env config: %v", err)
	}
	tabs.Flush()
}
