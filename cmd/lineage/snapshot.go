package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	lineage "github.com/coinlineage/lineage/pkg"
	"github.com/coinlineage/lineage/pkg/rpc"
	"github.com/coinlineage/lineage/pkg/store"
	"github.com/schollz/progressbar/v3"
)

// snapshotRange parses `<from> [to]`; a single height copies one block.
func snapshotRange(a []string) (from uint32, to uint32, err error) {
	f, err := strconv.ParseUint(a[0], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid height %q: %v", a[0], err)
	}
	t := f
	if len(a) > 1 {
		t, err = strconv.ParseUint(a[1], 10, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid height %q: %v", a[1], err)
		}
	}
	if t < f {
		return 0, 0, fmt.Errorf("height range %d..%d is empty", f, t)
	}
	return uint32(f), uint32(t), nil
}

// Snapshot copies blocks from the full node into Ledger.SnapshotDB,
// creating the database if needed, so queries can run with the sqlite
// backend.
func Snapshot(a []string, conf lineage.Config, args SubCommandArgs) error {
	from, to, err := snapshotRange(a)
	if err != nil {
		return err
	}
	if conf.Ledger.SnapshotDB == "" {
		return fmt.Errorf("no snapshot database: set Ledger.SnapshotDB or --snapshot-db")
	}
	logger := lineage.NewLogger(conf)
	node, err := rpc.NewFullNode(conf, logger)
	if err != nil {
		return err
	}
	db, err := store.NewSQLite(conf.Ledger.SnapshotDB)
	if err != nil {
		return err
	}
	defer db.Close()

	var progress func(height uint32)
	if !args.NoProgress {
		bar := progressbar.NewOptions(int(to-from)+1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Copying blocks"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("blocks"),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		progress = func(height uint32) {
			bar.Set(int(height-from) + 1)
		}
	}

	logger.Printf("Snapshot: copying blocks %d..%d into %s", from, to, conf.Ledger.SnapshotDB)
	stats, err := db.Snapshot(context.Background(), node, node, from, to, progress)
	if err != nil {
		return fmt.Errorf("snapshot failed after %d blocks (%s): %v", stats.Blocks, lineage.CodeOf(err), err)
	}
	fmt.Printf("Copied %d blocks (%d coin records, %d spends) into %s\n", stats.Blocks, stats.Coins, stats.Spends, conf.Ledger.SnapshotDB)
	return nil
}
