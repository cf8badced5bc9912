package cmd

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/liamg/lancache/cache"
)

func printResult(w io.Writer, result cache.Result, elapsed time.Duration) {

	if result.Hit {
		fmt.Fprintf(w, "Retrieved cached scan results for %s\n", result.Target)
	} else {
		fmt.Fprintf(w, "Performed network scan of %s in %s\n", result.Target, elapsed.Round(time.Millisecond))
	}

	fmt.Fprintf(w, "Found %s %s:\n", humanize.Comma(int64(len(result.Devices))), plural(len(result.Devices), "device", "devices"))
	for _, device := range result.Devices {
		fmt.Fprintf(w, "\t%s\n", device.String())
	}
	fmt.Fprintln(w)
}

func printStore(w io.Writer, store cache.Store, now time.Time) {

	fmt.Fprintln(w, "Current cache:")

	if store.Len() == 0 {
		fmt.Fprintln(w, "\t(empty)")
		return
	}

	queries := make([]string, 0, len(store.Queries))
	for key := range store.Queries {
		queries = append(queries, key)
	}
	sort.Strings(queries)

	for _, key := range queries {
		entry := store.Queries[key]
		fmt.Fprintf(
			w,
			"\t%s %s %s\n",
			pad(key, 20),
			pad(fmt.Sprintf("%d %s", len(entry.Devices), plural(len(entry.Devices), "device", "devices")), 12),
			expiry(entry.ExpiresAt, now),
		)
	}

	peers := make([]cache.PeerEntry, 0, len(store.Peers))
	for _, entry := range store.Peers {
		peers = append(peers, entry)
	}
	sort.Slice(peers, func(i, j int) bool {
		return peers[i].Device.Address() < peers[j].Device.Address()
	})

	if len(peers) > 0 {
		fmt.Fprintln(w, "Devices:")
	}
	for _, entry := range peers {
		fmt.Fprintf(w, "\t%s %s\n", entry.Device.String(), expiry(entry.ExpiresAt, now))
	}
}

func expiry(expiresAt time.Time, now time.Time) string {
	if now.After(expiresAt) {
		return "expired " + humanize.RelTime(expiresAt, now, "ago", "from now")
	}
	return "expires " + humanize.RelTime(expiresAt, now, "ago", "from now")
}

func plural(n int, singular string, many string) string {
	if n == 1 {
		return singular
	}
	return many
}

func pad(input string, length int) string {
	for len(input) < length {
		input += " "
	}
	return input
}
