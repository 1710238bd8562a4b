// beaconctl lists the beacons currently publishing heartbeats to Redis.
//
// Usage:
//
//	beaconctl --redis-url redis://localhost:6379/0
//	beaconctl --json
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/gravito-framework/statbeacon-go/internal/redis"
	"github.com/gravito-framework/statbeacon-go/pkg/types"
	"github.com/spf13/pflag"
)

func main() {
	redisURL := pflag.StringP("redis-url", "r", "redis://localhost:6379", "Redis URL the beacons publish to")
	asJSON := pflag.Bool("json", false, "print heartbeats as JSON")
	pflag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := redis.NewPublisher(*redisURL, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	reports, err := store.List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := printHeartbeats(os.Stdout, reports, *asJSON); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printHeartbeats(w io.Writer, reports []types.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	if len(reports) == 0 {
		_, err := fmt.Fprintln(w, "No beacons reporting.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCPU\tMEMORY\tTEMPERATURE\tTIME (UTC)")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Name, r.CPU, r.Mem, r.Temp, r.Time)
	}
	return tw.Flush()
}
