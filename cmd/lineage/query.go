package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	lineage "github.com/coinlineage/lineage/pkg"
	"github.com/coinlineage/lineage/pkg/resolver"
	"github.com/coinlineage/lineage/pkg/rpc"
	"github.com/coinlineage/lineage/pkg/store"
	"github.com/schollz/progressbar/v3"
)

// queryError names the coin and the kind of failure, for the exit message.
func queryError(query string, coin string, err error) error {
	return fmt.Errorf("%s %s failed (%s): %v", query, coin, lineage.CodeOf(err), err)
}

// openLedger builds the configured backend. The returned func releases it.
func openLedger(conf lineage.Config, logger *log.Logger) (lineage.Ledger, lineage.SpendEvaluator, func(), error) {
	switch conf.Ledger.Backend {
	case "rpc":
		node, err := rpc.NewFullNode(conf, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return node, node, func() {}, nil
	case "sqlite":
		snap, err := store.OpenSQLite(conf.Ledger.SnapshotDB)
		if err != nil {
			return nil, nil, nil, err
		}
		return snap, snap, snap.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown ledger backend %q (expected rpc or sqlite)", conf.Ledger.Backend)
	}
}

// queryLogger is the resolver's logger for a command line query. With no
// Log.Path it would share stderr with the progress bar, so it is silenced
// while the bar is shown.
func queryLogger(conf lineage.Config, args SubCommandArgs) *log.Logger {
	if conf.Log.Path == "" && !args.NoProgress {
		return log.New(io.Discard, "", 0)
	}
	return lineage.NewLogger(conf)
}

func newResolver(conf lineage.Config, args SubCommandArgs) (*resolver.Resolver, func(), error) {
	// node warnings (TLS, retries) always reach the log
	ledger, eval, closer, err := openLedger(conf, lineage.NewLogger(conf))
	if err != nil {
		return nil, nil, err
	}
	r := resolver.NewFromConfig(conf, ledger, eval, queryLogger(conf, args))
	if !args.NoProgress {
		r = r.WithProgress(newProgress().update)
	}
	return r, closer, nil
}

// progress draws a bar on stderr for each block scan.
type progress struct {
	bar   *progressbar.ProgressBar
	total int
}

func newProgress() *progress {
	return &progress{}
}

func (p *progress) update(done int, total int) {
	if p.bar == nil || total != p.total {
		p.total = total
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Scanning block spends"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("spends"),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	p.bar.Set(done)
	if done == total {
		p.bar.Finish()
	}
}

// Children prints the children of coin, resolved locally or by a remote
// lineage server.
func Children(coin string, conf lineage.Config, args SubCommandArgs) error {
	if args.Remote != "" {
		return remoteChildren(coin, conf, args)
	}
	id, err := lineage.Bytes32FromHex(coin)
	if err != nil {
		return queryError("children of", coin, err)
	}
	r, closer, err := newResolver(conf, args)
	if err != nil {
		return err
	}
	defer closer()

	res, err := r.Children(context.Background(), id)
	if lineage.IsNotSpentError(err) {
		fmt.Printf("Coin %s is unspent: it has no children yet.\n", id)
		return nil
	}
	if err != nil {
		return queryError("children of", coin, err)
	}
	rows := make([]coinRow, 0, len(res.Coins))
	for _, c := range res.Coins {
		rows = append(rows, coinRow{c.ID(), c.Amount})
	}
	fmt.Printf("Children of %s (spent at height %d):\n", id, res.Coin.SpentBlockIndex)
	printCoins(rows)
	if !res.Authenticated {
		fmt.Println("Note: read directly from CREATE_COIN, not cross-checked by an announcement.")
	}
	return nil
}

// Parents prints the parent and siblings of coin.
func Parents(coin string, conf lineage.Config, args SubCommandArgs) error {
	if args.Remote != "" {
		return remoteParents(coin, conf, args)
	}
	id, err := lineage.Bytes32FromHex(coin)
	if err != nil {
		return queryError("parents of", coin, err)
	}
	r, closer, err := newResolver(conf, args)
	if err != nil {
		return err
	}
	defer closer()

	res, err := r.Parents(context.Background(), id)
	if lineage.IsNoParentError(err) {
		fmt.Printf("Coin %s has no parent (farming reward or genesis coin).\n", id)
		return nil
	}
	if err != nil {
		return queryError("parents of", coin, err)
	}
	rows := []coinRow{{res.Parent.ID(), res.Parent.Coin.Amount}}
	for _, rec := range res.Siblings {
		rows = append(rows, coinRow{rec.ID(), rec.Coin.Amount})
	}
	fmt.Printf("Parents of %s (confirmed at height %d):\n", id, res.Coin.ConfirmedBlockIndex)
	printCoins(rows)
	return nil
}

type coinRow struct {
	id   lineage.CoinID
	mojo uint64
}

func printCoins(rows []coinRow) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COIN ID\tAMOUNT")
	var total uint64
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\n", r.id, lineage.FormatAmount(r.mojo))
		total += r.mojo
	}
	fmt.Fprintf(w, "%d coins\t%s\n", len(rows), lineage.FormatAmount(total))
	w.Flush()
}
