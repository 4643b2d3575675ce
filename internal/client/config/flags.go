package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/partsdesk/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   backend API base URL
//	-d string   local SQLite state database path
//	-r string   Redis address for the session-scoped store
//	-g string   gRPC gateway address
//	-i int      background refresh interval in minutes
//
// args is filtered with flagx.FilterArgs so flags owned by other components
// do not cause parse errors here.
func parseFlags(cfg *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-r", "-g", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "backend API base URL")
	fs.StringVar(&cfg.StateDBPath, "d", cfg.StateDBPath, "local state database path")
	fs.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "redis address for the session store (empty = in-memory)")
	fs.StringVar(&cfg.GRPCAddr, "g", cfg.GRPCAddr, "gRPC gateway address (empty = disabled)")
	refreshMinutes := fs.Int("i", int(cfg.RefreshInterval.Minutes()), "background token refresh interval (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RefreshInterval = time.Duration(*refreshMinutes) * time.Minute
}
