// fetchdata seeds or refreshes the watcher's snapshot files directly from
// the configured feeds, without diffing or notifying. Useful before first
// start so the bot does not announce the entire feed as new, and for
// inspecting snapshot state.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rolewatch/internal/config"
	"rolewatch/internal/watcher"
	logx "rolewatch/pkg/logx"
)

func main() {
	var (
		cfgPath   string
		yes       bool
		statsOnly bool
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.BoolVar(&yes, "yes", false, "update snapshots without asking")
	flag.BoolVar(&statsOnly, "stats", false, "show snapshot statistics and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath, yes, statsOnly); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string, yes, statsOnly bool) error {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return err
	}

	log := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "fetchdata"))

	dir := strings.TrimSpace(cfg.Watcher.SnapshotDir)
	if dir == "" {
		dir = "./data/snapshots"
	}
	snaps, err := watcher.NewSnapshotStore(dir, log)
	if err != nil {
		return err
	}

	printStats(cfg, snaps)
	if statsOnly {
		return nil
	}

	if !yes && !confirm("Do you want to update the snapshot files? (y/N): ") {
		fmt.Println("Update cancelled.")
		return nil
	}

	fetcher := watcher.NewHTTPFetcher(0, log)
	start := time.Now()
	failed := 0

	for _, f := range cfg.Watcher.Feeds {
		fctx := ctx
		if to, err := config.ParseDurationField("fetch_timeout", f.FetchTimeout); err == nil && to > 0 {
			var fcancel context.CancelFunc
			fctx, fcancel = context.WithTimeout(ctx, to)
			defer fcancel()
		}

		records, err := fetcher.Fetch(fctx, f.URL)
		if err != nil {
			log.Error("fetch failed", logx.String("feed", f.Name), logx.Err(err))
			failed++
			continue
		}
		if len(records) == 0 {
			log.Error("feed returned no records; snapshot kept", logx.String("feed", f.Name))
			failed++
			continue
		}
		if err := snaps.Save(f.Name, records); err != nil {
			log.Error("save failed", logx.String("feed", f.Name), logx.Err(err))
			failed++
			continue
		}
		log.Info("snapshot updated",
			logx.String("feed", f.Name), logx.Int("records", len(records)))
	}

	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("UPDATE SUMMARY")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Duration: %.2f seconds\n", time.Since(start).Seconds())
	fmt.Printf("Feeds: %d updated, %d failed\n", len(cfg.Watcher.Feeds)-failed, failed)

	if failed == 0 {
		printStats(cfg, snaps)
		return nil
	}
	return fmt.Errorf("%d of %d feeds failed to update", failed, len(cfg.Watcher.Feeds))
}

func printStats(cfg *config.Config, snaps *watcher.SnapshotStore) {
	fmt.Println("SNAPSHOT STATISTICS:")
	fmt.Println(strings.Repeat("-", 30))
	for _, f := range cfg.Watcher.Feeds {
		st, err := snaps.Stat(f.Name)
		if err != nil {
			fmt.Printf("%s: error: %v\n", f.Name, err)
			continue
		}
		if st.Modified == 0 {
			fmt.Printf("%s: no snapshot\n", f.Name)
			continue
		}
		fmt.Printf("%s:\n", f.Name)
		fmt.Printf("  Records: %d\n", st.Records)
		fmt.Printf("  Size: %d bytes (%.1f KB)\n", st.Size, float64(st.Size)/1024)
		fmt.Printf("  Last modified: %s\n", time.Unix(st.Modified, 0).Format("2006-01-02 15:04:05"))
	}
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	sc := bufio.NewScanner(os.Stdin)
	if !sc.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(sc.Text()))
	return answer == "y" || answer == "yes"
}
