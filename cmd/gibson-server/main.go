package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gibson/gibson/internal/server"
	"github.com/gibson/gibson/pkg/alloc"
	"github.com/gibson/gibson/pkg/config"
)

const usage = `Usage: gibson-server [-h|--help] [-c|--config FILE]

Gibson recognizes its settings via command-line flags or GIBSON_-prefixed
environment variables; there is no config-file parser (see spec §1/§6).
-c/--config is accepted for CLI compatibility with source tooling and is
otherwise ignored.
`

func main() {
	// -h/--help is handled here, ahead of config.Load's own flag.Parse, so
	// it prints this usage text and exits 0. -c/--config are registered
	// below as accepted-and-ignored flags. flag.Usage is replaced so that
	// an unrecognized flag or a malformed flag value exits with status 1
	// rather than the flag package's default status 2.
	for _, arg := range os.Args[1:] {
		if arg == "-h" || arg == "--help" {
			fmt.Print(usage)
			os.Exit(0)
		}
	}
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	flag.String("c", "", "Accepted for CLI compatibility; Gibson has no config-file parser")
	flag.String("config", "", "Accepted for CLI compatibility; Gibson has no config-file parser")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Printf("gibson: invalid configuration: %v", err)
		os.Exit(1)
	}

	log.Printf("gibson: starting with config: %+v", cfg)
	log.Printf("gibson: max_memory=%s max_key_size=%s max_value_size=%s max_request_size=%s",
		alloc.FormatBytes(cfg.MaxMemory), alloc.FormatBytes(int64(cfg.MaxKeySize)),
		alloc.FormatBytes(int64(cfg.MaxValueSize)), alloc.FormatBytes(int64(cfg.MaxRequestSize)))

	srv := server.New(cfg)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	signal.Ignore(syscall.SIGHUP, syscall.SIGPIPE)

	select {
	case err := <-errCh:
		if err != nil {
			log.Printf("gibson: server error: %v", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		log.Printf("gibson: received %s, shutting down", sig)
		if err := srv.Stop(); err != nil {
			log.Printf("gibson: error during shutdown: %v", err)
		}
		os.Exit(0)
	}
}
