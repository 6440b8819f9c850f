// main is the snagmail daemon launcher
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snagmail/snagmail/pkg/bus"
	"github.com/snagmail/snagmail/pkg/config"
	"github.com/snagmail/snagmail/pkg/domain/apikey"
	"github.com/snagmail/snagmail/pkg/domain/chaosaddr"
	"github.com/snagmail/snagmail/pkg/domain/subdomain"
	"github.com/snagmail/snagmail/pkg/eventlog"
	elmem "github.com/snagmail/snagmail/pkg/eventlog/mem"
	elsqlite "github.com/snagmail/snagmail/pkg/eventlog/sqlite"
	"github.com/snagmail/snagmail/pkg/ingest"
	"github.com/snagmail/snagmail/pkg/lookup"
	"github.com/snagmail/snagmail/pkg/projection"
	"github.com/snagmail/snagmail/pkg/projection/lookups"
	"github.com/snagmail/snagmail/pkg/readmodel"
	rmmem "github.com/snagmail/snagmail/pkg/readmodel/mem"
	rmsqlite "github.com/snagmail/snagmail/pkg/readmodel/sqlite"
	"github.com/snagmail/snagmail/pkg/server/admin"
)

var (
	// version contains the build version number, populated during linking.
	version = "undefined"

	// date contains the build date, populated during linking.
	date = "undefined"
)

func init() {
	// Register storage implementations.
	eventlog.Constructors["memory"] = elmem.New
	eventlog.Constructors["sqlite"] = elsqlite.New
	readmodel.Constructors["memory"] = rmmem.New
	readmodel.Constructors["sqlite"] = rmsqlite.New
}

func main() {
	// Command line flags.
	help := flag.Bool("help", false, "Displays help on flags and env variables.")
	logfile := flag.String("logfile", "stderr", "Write out log into the specified file.")
	logjson := flag.Bool("logjson", false, "Logs are written in JSON format.")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: snagmaild [options]")
		flag.PrintDefaults()
	}
	flag.Parse()
	if *help {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "")
		config.Usage()
		return
	}

	// Process configuration.
	config.Version = version
	config.BuildDate = date
	conf, err := config.Process()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Logger setup.
	closeLog, err := openLog(conf.LogLevel, *logfile, *logjson)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Log error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	startupLog := log.With().Str("phase", "startup").Logger()
	startupLog.Info().Str("version", version).Str("buildDate", date).
		Msg("Snagmail starting")

	// Setup signal handler.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	// Configure storage.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()
	elog, err := eventlog.FromConfig(conf.EventLog)
	if err != nil {
		startupLog.Fatal().Err(err).Str("module", "eventlog").Msg("Fatal event log error")
	}
	defer func() { _ = elog.Close() }()
	store, err := readmodel.FromConfig(conf.ReadModel)
	if err != nil {
		startupLog.Fatal().Err(err).Str("module", "readmodel").Msg("Fatal read-model store error")
	}
	defer func() { _ = store.Close() }()

	// Projection engine with the ingestion lookup projections, applied
	// inline on every save.
	engine := projection.NewEngine(elog, store, lookups.All()...)

	// Lookup caches; an empty Redis addr leaves caching disabled and all
	// lookups fall through to the read-model store.
	var rdb *redis.Client
	if conf.Cache.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: conf.Cache.Addr})
		defer func() { _ = rdb.Close() }()
	} else {
		startupLog.Info().Msg("No cache backend configured, lookups query the read model directly")
	}
	subdomainCache := lookup.NewSubdomainCache(rdb, conf.Cache, store)
	addressCache := lookup.NewAddressCache(rdb, conf.Cache, store)

	// Integration event bus with the cache invalidation subscriber.
	hub := bus.New(conf.Bus.History)
	go hub.Start(rootCtx)
	hub.AddListener(lookup.NewInvalidator(subdomainCache, addressCache))

	// Command services and the recipient resolver, exposed over the admin
	// API.  An SMTP frontend would share the same resolver.
	services := admin.Services{
		Subdomains: subdomain.NewService(elog, engine, hub),
		Addresses:  chaosaddr.NewService(elog, engine, hub),
		APIKeys:    apikey.NewService(elog, engine, hub),
		Resolver:   ingest.NewResolver(subdomainCache, addressCache),
	}

	// Start admin API server.
	adminServer := admin.NewServer(conf.Web, engine, admin.Lookups{
		Subdomains: subdomainCache,
		Addresses:  addressCache,
	}, services)
	go adminServer.Start(rootCtx)

	// Loop forever waiting for signals or a fatal server error.
	select {
	case sig := <-sigChan:
		log.Info().Str("phase", "shutdown").Str("signal", sig.String()).
			Msg("Received signal, shutting down")
	case err := <-adminServer.Notify():
		log.Error().Str("phase", "shutdown").Err(err).
			Msg("Admin server failed, shutting down")
	}
	rootCancel()
}

// openLog configures zerolog output, returns func to close logfile.
func openLog(level string, logfile string, json bool) (close func(), err error) {
	switch level {
	case "DEBUG":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "INFO":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "WARN":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "ERROR":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		return nil, fmt.Errorf("log level %q not one of: DEBUG, INFO, WARN, ERROR", level)
	}
	close = func() {}
	var w io.Writer
	color := runtime.GOOS != "windows"
	switch logfile {
	case "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		logf, err := os.OpenFile(logfile, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0666)
		if err != nil {
			return nil, err
		}
		bw := bufio.NewWriter(logf)
		w = bw
		color = false
		close = func() {
			_ = bw.Flush()
			_ = logf.Close()
		}
	}
	w = zerolog.SyncWriter(w)
	if json {
		log.Logger = log.Output(w)
		return close, nil
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:     w,
		NoColor: !color,
	})
	return close, nil
}
