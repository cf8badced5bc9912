package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/liamg/lancache/cache"
	"github.com/liamg/lancache/scan"
	"github.com/liamg/lancache/version"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const defaultTarget = "192.168.0.0/24"

var debug bool
var timeoutMS int = 5000
var parallelism int = 256
var method = "auto"
var backend = "json"
var cacheFile string
var configFile string
var ttl = cache.DefaultTTL
var resolveNames bool
var watchInterval time.Duration
var metricsAddr string
var versionRequested bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&versionRequested, "version", "", versionRequested, "Output version information and exit")
	rootCmd.PersistentFlags().BoolVarP(&debug, "verbose", "v", debug, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", configFile, "Config file (default $XDG_CONFIG_HOME/lancache/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&cacheFile, "cache-file", "f", cacheFile, "Location of the scan cache (default $XDG_CACHE_HOME/lancache/scan-cache.json)")
	rootCmd.PersistentFlags().StringVarP(&backend, "backend", "b", backend, "Cache storage. Must be one of json, pebble")
	rootCmd.PersistentFlags().DurationVarP(&ttl, "ttl", "", ttl, "How long scan results are served from the cache")
	rootCmd.PersistentFlags().StringVarP(&method, "method", "m", method, "Discovery method. Must be one of auto, arp, table")
	rootCmd.PersistentFlags().IntVarP(&timeoutMS, "timeout-ms", "t", timeoutMS, "Scan timeout in MS")
	rootCmd.PersistentFlags().IntVarP(&parallelism, "workers", "w", parallelism, "Parallel routines to scan on")
	rootCmd.PersistentFlags().BoolVarP(&resolveNames, "names", "n", resolveNames, "Look up host names of discovered devices")
	rootCmd.Flags().DurationVarP(&watchInterval, "watch", "", watchInterval, "Resolve the targets repeatedly at this interval")
	rootCmd.Flags().StringVarP(&metricsAddr, "metrics-addr", "", metricsAddr, "Serve prometheus metrics on this address while watching, e.g. :9105")
}

func createProber(methodStr string, timeout time.Duration, routines int) (scan.Prober, error) {
	switch strings.ToLower(methodStr) {
	case "auto":
		if os.Geteuid() == 0 {
			return scan.NewARPProber(timeout, resolveNames), nil
		}
		log.Debugf("Not running as root, reading the neighbour table instead of sending ARP requests")
		return scan.NewTableProber(timeout, routines, resolveNames), nil
	case "arp":
		if os.Geteuid() > 0 {
			return nil, fmt.Errorf("Access Denied: You must be a priviliged user to send ARP requests.")
		}
		return scan.NewARPProber(timeout, resolveNames), nil
	case "table":
		return scan.NewTableProber(timeout, routines, resolveNames), nil
	}

	return nil, fmt.Errorf("Unknown discovery method '%s'", methodStr)
}

func createProxy(prober scan.Prober, reg prometheus.Registerer) (*cache.Proxy, error) {
	persister, err := openPersister(backend, cacheFile)
	if err != nil {
		return nil, err
	}
	return cache.New(prober, persister, cache.Options{
		TTL:        ttl,
		Logger:     log.StandardLogger(),
		Registerer: reg,
	}), nil
}

var rootCmd = &cobra.Command{
	Use:   "lancache [target...]",
	Short: "lancache discovers devices on the local network",
	Long: `Discovers devices on a network segment and caches the results so that
repeated scans of the same target within the TTL are answered from disk.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if debug {
			log.SetLevel(log.DebugLevel)
		}
		if versionRequested {
			return nil
		}
		return applyConfig(cmd)
	},
	Run: func(cmd *cobra.Command, args []string) {

		if versionRequested {
			v := version.Version
			if v == "" {
				v = "development version"
			}
			fmt.Printf("lancache %s\n", v)
			return
		}

		targets := args
		if len(targets) == 0 {
			targets = []string{defaultTarget}
		}

		prober, err := createProber(method, time.Millisecond*time.Duration(timeoutMS), parallelism)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		reg := prometheus.NewRegistry()
		proxy, err := createProxy(prober, reg)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		defer proxy.Close()

		if watchInterval > 0 {
			if err := watch(cmd.Context(), proxy, reg, targets); err != nil {
				fmt.Println(err)
				proxy.Close()
				os.Exit(1)
			}
			return
		}

		if !resolveTargets(cmd.Context(), proxy, targets) {
			proxy.Close()
			os.Exit(1)
		}

		fmt.Println()
		printStore(os.Stdout, proxy.Snapshot(), time.Now())
	},
}

// resolveTargets prints the devices found for each target and reports
// whether every probe succeeded.
func resolveTargets(ctx context.Context, proxy *cache.Proxy, targets []string) bool {

	ok := true

	for _, target := range targets {

		log.Debugf("Resolving target %s...", target)

		startTime := time.Now()
		result, err := proxy.Resolve(ctx, target)
		if err != nil {
			var persistErr *cache.PersistenceError
			if !errors.As(err, &persistErr) {
				fmt.Println(err)
				ok = false
				continue
			}
			log.Warnf("Results for %s could not be saved: %s", target, persistErr)
		}

		printResult(os.Stdout, result, time.Since(startTime))
	}

	return ok
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
