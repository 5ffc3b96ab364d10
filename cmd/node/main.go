// Copyright 2025 Certen Protocol
//
// cmd/node wires every component into a running rollup node: KV storage,
// CommitmentTree, BlockStore, ProofBackend, L1Gateway, Validator,
// Mempool, AdmissionPipeline, gossip, the optional Postgres mirror,
// metrics, and the RPC facade. Grounded on main.go's own wiring style:
// flag.String for a config path, http.NewServeMux for the API and a
// second mux for metrics, and signal.Notify-based graceful shutdown.

package main

import (
	"context"
	"flag"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/ethereum/go-ethereum/common"

	"github.com/SatsBridge/payy/pkg/blockstore"
	"github.com/SatsBridge/payy/pkg/burnsub"
	"github.com/SatsBridge/payy/pkg/config"
	"github.com/SatsBridge/payy/pkg/engine"
	"github.com/SatsBridge/payy/pkg/gossip"
	"github.com/SatsBridge/payy/pkg/kv"
	"github.com/SatsBridge/payy/pkg/l1gateway"
	"github.com/SatsBridge/payy/pkg/mempool"
	"github.com/SatsBridge/payy/pkg/merkletree"
	"github.com/SatsBridge/payy/pkg/metrics"
	"github.com/SatsBridge/payy/pkg/pgindex"
	"github.com/SatsBridge/payy/pkg/pipeline"
	"github.com/SatsBridge/payy/pkg/proofbackend"
	"github.com/SatsBridge/payy/pkg/rpc"
	"github.com/SatsBridge/payy/pkg/types"
	"github.com/SatsBridge/payy/pkg/validator"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the node's YAML config file")
	peerList := flag.String("peers", "", "Comma-separated list of peer base URLs for gossip")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("node: load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("node: invalid config: %v", err)
	}

	db, err := dbm.NewDB("rollup", dbm.BackendType(cfg.Storage.Backend), cfg.Storage.DataDir)
	if err != nil {
		log.Fatalf("node: open storage: %v", err)
	}
	defer db.Close()
	store := kv.NewAdapter(db)

	tree, err := merkletree.New(store)
	if err != nil {
		log.Fatalf("node: load commitment tree: %v", err)
	}

	blocks, err := blockstore.New(store)
	if err != nil {
		log.Fatalf("node: load block store: %v", err)
	}

	proofBackend := proofbackend.New(cfg.Proof.ProvingKeyPath, cfg.Proof.VerifyingKeyPath)

	gw, err := l1gateway.New(l1gateway.Config{
		RPCURL:     cfg.Network.EthereumURL,
		ChainID:    cfg.Network.EthChainID,
		RollupAddr: common.HexToAddress(cfg.Network.RollupContract),
		USDCAddr:   common.HexToAddress(cfg.Network.USDCContract),
		SignerHex:  cfg.Network.EthPrivateKey,
	})
	if err != nil {
		log.Fatalf("node: connect to L1: %v", err)
	}

	m := metrics.New()

	pool := mempool.New()
	eng := engine.New(tree, blocks, pool)
	eng.Metrics = m

	var pgIndex *pgindex.Index
	if cfg.Database.URL != "" {
		pgIndex, err = pgindex.Open(pgindex.Config{
			DSN:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			if cfg.Database.Required {
				log.Fatalf("node: database connection required but failed: %v", err)
			}
			log.Printf("node: optional Postgres mirror unavailable, continuing KV-only: %v", err)
		}
	}

	vdeps := validator.Deps{
		Proof:               proofBackend,
		Tree:                tree.NewSnapshot(),
		History:             &historyAdapter{blocks: blocks},
		L1:                  &l1ValidatorAdapter{gw: gw},
		SafeEthHeightOffset: cfg.Network.SafeEthHeightOffset,
		Metrics:             m,
	}
	validate := func(ctx context.Context, proof *types.UtxoProof) error {
		vdeps.Tree = tree.NewSnapshot()
		return validator.Validate(ctx, vdeps, proof)
	}

	var peers []string
	if *peerList != "" {
		peers = strings.Split(*peerList, ",")
	}
	gossipNode := gossip.NewNode(peers, validate, pool)

	pl := &pipeline.Pipeline{
		Validate:            validate,
		L1:                  gw,
		Gossip:              gossipNode,
		Mempool:             pool,
		SafeEthHeightOffset: cfg.Network.SafeEthHeightOffset,
		Metrics:             m,
	}

	apiServer := rpc.NewServer(pl, blocks, pool)
	apiMux := http.NewServeMux()
	apiMux.Handle("/", apiServer)
	apiMux.HandleFunc("/gossip/transaction", gossipNode.HandleReceive)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", m.Handler())
	metricsMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	apiHTTPServer := &http.Server{Addr: cfg.Server.ListenAddr, Handler: apiMux}
	metricsHTTPServer := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: metricsMux}

	ctx, cancel := context.WithCancel(context.Background())

	if cfg.Network.USDCContract != "" {
		tracker := &burnsub.KVTracker{Store: store}
		sub := &burnsub.Substitutor{Blocks: blocks, L1: gw, Tracker: tracker, RecipientOf: burnRecipient}
		go runBurnSubstitutor(ctx, sub)
	}

	go func() {
		log.Printf("node: API listening on %s", cfg.Server.ListenAddr)
		if err := apiHTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("node: API server failed: %v", err)
		}
	}()

	go func() {
		log.Printf("node: metrics listening on %s", cfg.Server.MetricsAddr)
		if err := metricsHTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("node: metrics server failed: %v", err)
		}
	}()

	// Block-production consensus is an abstract external collaborator;
	// runSequencer stands in for it in single-node operation, driving
	// eng.ApplyBlock (its commit callback) and pgIndex.MirrorBlock (its
	// read-mirror hook) from the mempool's admitted-in-order queue.
	go runSequencer(ctx, eng, pool, blocks, pgIndex, cfg.Validator.BlockBudget)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("node: shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := apiHTTPServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("node: API server shutdown error: %v", err)
	}
	if err := metricsHTTPServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("node: metrics server shutdown error: %v", err)
	}
}

// runSequencer stands in for the abstract block-production collaborator
// consensus would otherwise provide: on a fixed tick it drains admitted
// proofs from the mempool in admission order, assembles them into the
// next block, and commits them through the engine. A single node is its
// own sole sequencer, so no leader election or fork choice is needed here.
func runSequencer(ctx context.Context, eng *engine.Engine, pool *mempool.Mempool, blocks *blockstore.Store, pgIndex *pgindex.Index, blockBudget int) {
	if blockBudget <= 0 {
		blockBudget = 256
	}
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			proofs := pool.TakeForBlock(blockBudget)
			if len(proofs) == 0 {
				continue
			}

			height := blocks.LatestHeight() + 1
			var prevHash types.Element
			if height > 1 {
				prev, ok, err := blocks.GetBlock(height - 1)
				if err != nil {
					log.Printf("node: sequencer: load previous block: %v", err)
					continue
				}
				if ok {
					prevHash = prev.Hash()
				}
			}

			b := &blockstore.Block{
				Header: blockstore.Header{
					Height:    height,
					PrevHash:  prevHash,
					CreatedAt: time.Now(),
				},
				Content: blockstore.Content{Proofs: proofs},
			}

			if err := eng.ApplyBlock(b); err != nil {
				log.Printf("node: sequencer: apply block %d: %v", height, err)
				continue
			}

			if pgIndex != nil {
				txnHashes := make([]types.Element, 0, len(proofs))
				for _, p := range proofs {
					txnHashes = append(txnHashes, p.Hash())
				}
				if err := pgIndex.MirrorBlock(ctx, height, b.Hash(), b.Content.RootHash, txnHashes); err != nil {
					log.Printf("node: mirror block %d to postgres: %v", height, err)
				}
			}
		}
	}
}

func runBurnSubstitutor(ctx context.Context, sub *burnsub.Substitutor) {
	var fromHeight uint64 = 1
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next, err := sub.Tick(ctx, fromHeight)
			if err != nil {
				log.Printf("node: burn substitution tick failed: %v", err)
				continue
			}
			fromHeight = next
		}
	}
}

// burnRecipient translates a burn proof's KindMessage into an L1 payout
// address and token amount: the low 20 bytes of the To element are the
// recipient address, following the hex-everywhere convention the rest of
// the node uses for Element <-> Ethereum-type conversions.
func burnRecipient(kind types.KindMessage) (common.Address, *big.Int) {
	toBytes := kind.To.Bytes()
	var addr common.Address
	copy(addr[:], toBytes[len(toBytes)-20:])
	return addr, new(big.Int).SetUint64(kind.Value)
}

// l1ValidatorAdapter narrows *l1gateway.Gateway to validator.L1Gateway,
// converting the gateway's *big.Int mint amount into the uint64 the
// KindMessage.Value field uses.
type l1ValidatorAdapter struct {
	gw *l1gateway.Gateway
}

func (a *l1ValidatorAdapter) BlockNumber(ctx context.Context) (uint64, error) {
	return a.gw.BlockNumber(ctx)
}

func (a *l1ValidatorAdapter) GetMintAt(ctx context.Context, mintHash types.Element, atHeight uint64) (validator.MintRegistration, bool, error) {
	reg, ok, err := a.gw.GetMintAt(ctx, mintHash, atHeight)
	if err != nil || !ok {
		return validator.MintRegistration{}, ok, err
	}
	return validator.MintRegistration{Amount: reg.Amount.Uint64(), NoteKind: reg.NoteKind}, true, nil
}

// historyAdapter narrows *blockstore.Store to validator.ElementHistorySource.
type historyAdapter struct {
	blocks *blockstore.Store
}

func (a *historyAdapter) GetElementHistory(e types.Element) (validator.FirstInsertedBlock, error) {
	h, err := a.blocks.GetElementHistory(e)
	if err != nil {
		return validator.FirstInsertedBlock{}, err
	}
	return validator.FirstInsertedBlock{FirstInsertedBlock: h.FirstInsertedBlock, LastRemovedBlock: h.LastRemovedBlock}, nil
}
