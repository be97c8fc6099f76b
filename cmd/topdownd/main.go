// Command topdownd runs the parent-chain finality subsystem as a
// standalone daemon: it polls the parent chain, maintains the finality
// provider and vote tally, and reports on the bottom-up checkpoint pool, exposing
// its state to whatever consensus engine embeds it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"golang.org/x/sync/errgroup"

	"github.com/consensus-shipyard/mono-ipc/config"
	"github.com/consensus-shipyard/mono-ipc/events"
	"github.com/consensus-shipyard/mono-ipc/interpreter"
	"github.com/consensus-shipyard/mono-ipc/parentproxy"
	"github.com/consensus-shipyard/mono-ipc/topdown"
	"github.com/consensus-shipyard/mono-ipc/topdown/cache"
	topdownsync "github.com/consensus-shipyard/mono-ipc/topdown/sync"
	"github.com/consensus-shipyard/mono-ipc/wallet"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	keyPath := flag.String("key", "validator.key", "path to keystore file")
	genKey := flag.Bool("genkey", false, "generate a new validator key and exit")
	flag.Parse()

	password := os.Getenv("TOPDOWN_PASSWORD")
	if password == "" {
		log.Println("WARNING: TOPDOWN_PASSWORD not set — keystore will use an empty password")
	}

	if *genKey {
		w, err := wallet.Generate()
		if err != nil {
			log.Fatal(err)
		}
		if err := wallet.SaveKey(*keyPath, password, w.PrivKey()); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Generated key. Public key (validator identity): %s\n", w.PubKey())
		fmt.Printf("Saved to: %s\n", *keyPath)
		return
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("mkdir data dir: %v", err)
	}

	db, err := leveldb.OpenFile(filepath.Join(cfg.DataDir, "parentcache"), nil)
	if err != nil {
		log.Fatalf("open cache store: %v", err)
	}
	defer db.Close()

	store := cache.NewLevelStore[*topdown.ParentView](db, "parentview:")
	emitter := events.NewEmitter()
	emitter.Subscribe(events.EventParentFinalityCommitted, func(ev events.Event) {
		log.Printf("[topdownd] parent finality committed at height %d", ev.BlockHeight)
	})
	emitter.Subscribe(events.EventProposalRejected, func(ev events.Event) {
		log.Printf("[topdownd] proposal rejected: %v", ev.Data["reason"])
	})

	genesis := topdown.IPCParentFinality{Height: 0}
	provider := topdown.NewFinalityProvider(cfg.Topdown(), store, emitter, genesis)

	powerTable, err := cfg.PowerTable()
	if err != nil {
		log.Fatalf("power table: %v", err)
	}
	tally := topdown.NewVoteTally(powerTable, genesis)

	proxy := parentproxy.New(cfg.ParentRPCEndpoint, cfg.ParentRPCAuthToken)
	pool := interpreter.NewCheckpointPool()

	syncer := topdownsync.New(cfg.Topdown(), proxy, provider, tally, alwaysCaughtUp{})

	log.Printf("topdownd starting: node=%s chain=%s parent=%s", cfg.NodeID, cfg.ChainID, cfg.ParentRPCEndpoint)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return syncer.Run(gctx)
	})
	g.Go(func() error {
		return runResolverLoop(gctx, pool)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatalf("topdownd: %v", err)
	}
	log.Println("Shutdown complete.")
}

// runResolverLoop periodically counts the checkpoint pool's Resolved
// entries and logs that count when it is non-zero, so an operator can
// tell whether resolved checkpoints are being proposed. Actual checkpoint content resolution
// is driven externally (by whatever submits RelayedCheckpoint messages
// through the interpreter); this loop only reports pool health.
func runResolverLoop(ctx context.Context, pool *interpreter.CheckpointPool) error {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			resolved := pool.CollectResolved()
			if len(resolved) > 0 {
				log.Printf("[topdownd] %d checkpoint(s) ready for bottom-up execution", len(resolved))
			}
		}
	}
}

// alwaysCaughtUp is the default CaughtUpChecker for a standalone
// topdownd process with no embedding consensus engine to consult. A
// node that embeds this daemon as a library should supply its own
// executor.CaughtUpChecker backed by its replay status instead.
type alwaysCaughtUp struct{}

func (alwaysCaughtUp) IsCaughtUp(ctx context.Context) (bool, error) { return true, nil }

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config file not found at %s, using defaults.", path)
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}
