package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/cashkeeper/internal/flagx"
)

// parseFlags overlays cfg with -a (API base URL) and -t (request timeout in
// whole seconds). Unknown arguments are left for other parsers; a malformed
// value panics.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-t"})

	fs := flag.NewFlagSet("cli", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the cashkeeper API")
	timeout := fs.Int("t", int(cfg.RequestTimeout/time.Second), "request timeout in seconds")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
