package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/lockbox/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-b string   storage backend: sqlite or bolt
//	-f string   vault database file
//	-t int      session idle timeout in seconds
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-b", "-f", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.StorageBackend, "b", cfg.StorageBackend, "storage backend (sqlite or bolt)")
	fs.StringVar(&cfg.StoragePath, "f", cfg.StoragePath, "vault database file")
	idleTimeout := fs.Int("t", int(cfg.SessionIdleTimeout.Seconds()), "session idle timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SessionIdleTimeout = time.Duration(*idleTimeout) * time.Second
}
