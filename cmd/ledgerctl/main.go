// Command ledgerctl exercises the ledgerclient binding against an
// in-process cluster: a scripted two-phase transfer demo and a
// concurrency benchmark. Production systems embed the library with a
// native cluster runtime instead.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/copperline/ledgerclient"
	"github.com/copperline/ledgerclient/internal/cliconfig"
	"github.com/copperline/ledgerclient/pkg/batch"
	"github.com/copperline/ledgerclient/pkg/log"
	"github.com/copperline/ledgerclient/pkg/memcluster"
	"github.com/copperline/ledgerclient/pkg/types"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func newLogger(level string) log.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return log.NewZerologAdapterWithLogger(
		zerolog.New(output).Level(lvl).With().Timestamp().Logger(),
	)
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string
	var watch bool

	root := &cobra.Command{
		Use:     "ledgerctl",
		Short:   "Exercise the ledger client binding against an in-process cluster",
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Precedence: flags > environment > config file > defaults.
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			return cfg.Validate()
		},
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default $HOME/.ledgerctl/config.toml)")
	root.PersistentFlags().StringVar(&cfg.ClusterID, "cluster-id", cfg.ClusterID, "cluster id (hex)")
	root.PersistentFlags().StringSliceVar(&cfg.Addresses, "addresses", cfg.Addresses, "cluster replica addresses")
	root.PersistentFlags().IntVar(&cfg.MaxConcurrentRequests, "max-concurrent-requests", cfg.MaxConcurrentRequests, "in-flight request cap")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	demo := &cobra.Command{
		Use:   "demo",
		Short: "Run the two-phase transfer flow end to end",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), &cfg, cfgPath, watch)
		},
	}
	demo.Flags().BoolVar(&watch, "watch", false, "reload the config file on change")

	var requests, batchSize, concurrency int
	bench := &cobra.Command{
		Use:   "bench",
		Short: "Measure concurrent submission throughput and backpressure",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd.Context(), &cfg, requests, batchSize, concurrency)
		},
	}
	bench.Flags().IntVar(&requests, "requests", 1000, "total create-transfers requests")
	bench.Flags().IntVar(&batchSize, "batch-size", 100, "transfers per request")
	bench.Flags().IntVar(&concurrency, "concurrency", 8, "submitting goroutines")

	root.AddCommand(demo, bench)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// newClient wires a client to a fresh in-process cluster.
func newClient(cfg *cliconfig.Config, logger log.Logger) (*ledgerclient.Client, *memcluster.Cluster, error) {
	clusterID, err := cfg.ClusterID128()
	if err != nil {
		return nil, nil, err
	}
	cluster := memcluster.New(memcluster.Config{Logger: logger})
	client, err := ledgerclient.New(ledgerclient.Config{
		ClusterID:             clusterID,
		Addresses:             cfg.Addresses,
		MaxConcurrentRequests: cfg.MaxConcurrentRequests,
		Logger:                logger,
	}, cluster.Factory())
	if err != nil {
		cluster.Close()
		return nil, nil, err
	}
	return client, cluster, nil
}

func runDemo(ctx context.Context, cfg *cliconfig.Config, cfgPath string, watch bool) error {
	logger := newLogger(cfg.LogLevel)

	if watch {
		path := cfgPath
		if path == "" {
			path = cliconfig.DefaultConfigPath()
		}
		watcher, err := cliconfig.WatchFile(path, logger, func(next cliconfig.Config) {
			// Applies to clients created after the change.
			*cfg = next
			logger.Info("address list updated", log.Int("addresses", len(next.Addresses)))
		})
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		defer watcher.Close()
	}

	client, cluster, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	defer cluster.Close()
	defer client.Close()

	alice, bob := types.U128(1), types.U128(2)

	accounts, err := batch.NewAccounts(2)
	if err != nil {
		return err
	}
	accounts.Append(types.Account{ID: alice, Ledger: 1, Code: 1})
	accounts.Append(types.Account{ID: bob, Ledger: 1, Code: 1})
	accountResults, err := client.CreateAccounts(ctx, accounts)
	if err != nil {
		return err
	}
	if len(accountResults) > 0 {
		r := accountResults[0]
		return fmt.Errorf("account %d rejected: %s", r.Index, r.Result)
	}

	pendingID := types.U128(100)
	transfers, err := batch.NewTransfers(1)
	if err != nil {
		return err
	}
	transfers.Append(types.Transfer{
		ID:              pendingID,
		DebitAccountID:  alice,
		CreditAccountID: bob,
		Amount:          types.U128(100),
		Ledger:          1,
		Code:            1,
		Flags:           types.TransferPending,
	})
	if _, err := client.CreateTransfers(ctx, transfers); err != nil {
		return err
	}
	printBalances(ctx, client, "after pending transfer", alice, bob)

	post, err := batch.NewTransfers(1)
	if err != nil {
		return err
	}
	post.Append(types.Transfer{
		ID:        types.U128(101),
		PendingID: pendingID,
		Amount:    types.Uint128Max(),
		Flags:     types.TransferPostPendingTransfer,
	})
	if _, err := client.CreateTransfers(ctx, post); err != nil {
		return err
	}
	printBalances(ctx, client, "after post", alice, bob)

	recent, err := client.QueryTransfers(ctx, types.QueryFilter{
		Ledger: 1,
		Limit:  10,
		Flags:  types.QueryFilterReversed,
	})
	if err != nil {
		return err
	}
	fmt.Printf("transfers on ledger 1, newest first:\n")
	for _, t := range recent {
		fmt.Printf("  %s  amount=%s  flags=%#x\n", t.ID, t.Amount.BigInt(), t.Flags)
	}
	return nil
}

func printBalances(ctx context.Context, client *ledgerclient.Client, label string, ids ...types.Uint128) {
	lookup, err := batch.NewIDs(len(ids))
	if err != nil {
		return
	}
	for _, id := range ids {
		lookup.Append(id)
	}
	accounts, err := client.LookupAccounts(ctx, lookup)
	if err != nil {
		return
	}
	fmt.Printf("%s:\n", label)
	for _, a := range accounts {
		fmt.Printf("  account %s  debits_pending=%s debits_posted=%s credits_pending=%s credits_posted=%s\n",
			a.ID, a.DebitsPending.BigInt(), a.DebitsPosted.BigInt(),
			a.CreditsPending.BigInt(), a.CreditsPosted.BigInt())
	}
}

func runBench(ctx context.Context, cfg *cliconfig.Config, requests, batchSize, concurrency int) error {
	logger := newLogger(cfg.LogLevel)

	client, cluster, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	defer cluster.Close()
	defer client.Close()

	alice, bob := types.U128(1), types.U128(2)
	accounts, err := batch.NewAccounts(2)
	if err != nil {
		return err
	}
	accounts.Append(types.Account{ID: alice, Ledger: 1, Code: 1})
	accounts.Append(types.Account{ID: bob, Ledger: 1, Code: 1})
	if _, err := client.CreateAccounts(ctx, accounts); err != nil {
		return err
	}

	var next atomic.Uint64
	next.Store(1000)
	var sent, rejected atomic.Uint64
	var wg sync.WaitGroup
	start := time.Now()

	work := make(chan struct{}, requests)
	for i := 0; i < requests; i++ {
		work <- struct{}{}
	}
	close(work)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range work {
				transfers, err := batch.NewTransfers(batchSize)
				if err != nil {
					return
				}
				for j := 0; j < batchSize; j++ {
					transfers.Append(types.Transfer{
						ID:              types.U128(next.Add(1)),
						DebitAccountID:  alice,
						CreditAccountID: bob,
						Amount:          types.U128(1),
						Ledger:          1,
						Code:            1,
					})
				}
				if _, err := client.CreateTransfers(ctx, transfers); err != nil {
					rejected.Add(1)
					continue
				}
				sent.Add(1)
			}
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	total := sent.Load() * uint64(batchSize)
	fmt.Printf("sent %d requests (%d transfers) in %s, %d rejected, %.0f transfers/s\n",
		sent.Load(), total, elapsed.Round(time.Millisecond), rejected.Load(),
		float64(total)/elapsed.Seconds())
	return nil
}
