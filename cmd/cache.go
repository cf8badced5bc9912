package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/liamg/lancache/cache"
	"github.com/liamg/lancache/scan"
	"github.com/spf13/cobra"
)

func init() {
	cacheCmd.AddCommand(cacheShowCmd, cachePurgeCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

// openCacheOnly opens the cache without a working prober; the cache
// subcommands never probe.
func openCacheOnly() *cache.Proxy {
	proxy, err := createProxy(noProber{}, nil)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	return proxy
}

var errProbeDisabled = errors.New("probing is disabled for cache maintenance")

type noProber struct{}

func (noProber) Probe(ctx context.Context, target string) ([]scan.Device, error) {
	return nil, &scan.ProbeError{Target: target, Err: errProbeDisabled}
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or reset the scan cache",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print every cached target and device with its time to expiry",
	Run: func(cmd *cobra.Command, args []string) {
		proxy := openCacheOnly()
		defer proxy.Close()

		printStore(os.Stdout, proxy.Snapshot(), time.Now())
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove expired entries from the scan cache",
	Run: func(cmd *cobra.Command, args []string) {
		proxy := openCacheOnly()
		defer proxy.Close()

		removed, err := proxy.Purge()
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Printf("Removed %d expired %s.\n", removed, plural(removed, "entry", "entries"))
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every entry from the scan cache",
	Run: func(cmd *cobra.Command, args []string) {
		proxy := openCacheOnly()
		defer proxy.Close()

		if err := proxy.Clear(); err != nil {
			fmt.Println(err)
			return
		}
		fmt.Println("Scan cache cleared.")
	},
}
