// Command node starts a nanocore full node.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nanospec/nanocore/blockproc"
	"github.com/nanospec/nanocore/chainparams"
	"github.com/nanospec/nanocore/config"
	"github.com/nanospec/nanocore/confirm"
	"github.com/nanospec/nanocore/crypto"
	"github.com/nanospec/nanocore/election"
	"github.com/nanospec/nanocore/events"
	"github.com/nanospec/nanocore/ledger"
	"github.com/nanospec/nanocore/p2p"
	"github.com/nanospec/nanocore/primitives"
	"github.com/nanospec/nanocore/store"
	"github.com/nanospec/nanocore/transport"
	"github.com/nanospec/nanocore/vote"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	keyPath := flag.String("key", "node.key", "path to node identity keyfile (hex-encoded ed25519 private key)")
	genKey := flag.Bool("genkey", false, "generate a new node identity key and exit")
	flag.Parse()

	if *genKey {
		priv, pub, err := crypto.GenerateKeyPair()
		if err != nil {
			log.Fatalf("genkey: %v", err)
		}
		if err := os.WriteFile(*keyPath, []byte(priv.Hex()+"\n"), 0600); err != nil {
			log.Fatalf("genkey: write %s: %v", *keyPath, err)
		}
		fmt.Printf("Generated node key. Node id: %s\n", pub.Hex())
		fmt.Printf("Saved to: %s\n", *keyPath)
		return
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	nodeKey, err := loadOrCreateKey(*keyPath)
	if err != nil {
		log.Fatalf("node key: %v", err)
	}
	log.Printf("Node id: %s", nodeKey.Public().Hex())

	network, err := cfg.ResolveNetwork()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	params, err := chainparams.Load(network)
	if err != nil {
		log.Fatalf("chainparams: %v", err)
	}

	// ---- open ledger store ----
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("mkdir data dir: %v", err)
	}
	db, err := store.NewLevelDB(cfg.DataDir + "/ledger")
	if err != nil {
		log.Fatalf("open ledger db: %v", err)
	}
	defer db.Close()

	genesisInfo, err := ledger.SeedGenesis(db, params)
	if err != nil {
		log.Fatalf("seed genesis: %v", err)
	}
	log.Printf("Genesis account %s at height %d", params.GenesisAccount.Hex(), genesisInfo.BlockCount)

	weights := ledger.NewWeightTable()
	weights.Adjust(primitives.Account{}, primitives.ZeroAmount, genesisInfo.Representative, genesisInfo.Balance)

	// ---- events ----
	emitter := events.NewEmitter()
	emitter.Subscribe(events.EventBlockCemented, func(ev events.Event) {
		log.Printf("[confirm] cemented %v", ev.Data["hash"])
	})

	// ---- confirmation / cementation ----
	confirmer := confirm.New(db, emitter)

	// ---- vote cache & online tracking ----
	voteCache, err := vote.NewCache(cfg.VoteProcessor.MaxQueue)
	if err != nil {
		log.Fatalf("vote cache: %v", err)
	}
	online := election.NewOnlineTracker(db, weights)

	// ---- election engine ----
	engCfg := election.EngineConfig{
		MaxActive:                  cfg.ActiveElections.Size,
		QuorumFractionPpm:          670000,
		ConfirmationMinFractionPpm: 500000,
		VotingInterval:             2 * time.Second,
		HintedWeightFractionPpm:    50000,
	}
	engine := election.NewEngine(engCfg, weights, online, voteCache, emitter, confirmer)

	cacheProc := vote.NewCacheProcessor(voteCache, engine, engine)
	engine.SetCacheTrigger(cacheProc.Trigger)
	go cacheProc.Run()
	defer cacheProc.Stop()

	// ---- vote router ----
	routerCfg := vote.RouterConfig{MaxQueue: cfg.VoteProcessor.MaxQueue, MaxTriggered: cfg.VoteProcessor.MaxTriggered}
	router := vote.NewRouter(routerCfg, voteCache, engine, engine)

	// ---- block processor ----
	now := func() uint64 { return uint64(time.Now().Unix()) }
	procCfg := blockproc.Config{MaxQueuedPerSource: cfg.BlockProcessor.MaxQueuedPerSource, BatchSize: 256}
	processor := blockproc.New(procCfg, db, params, emitter, weights, now)

	// A freshly inserted block opens (or feeds an existing) election for
	// its qualified root; the engine tallies quorum and hands confirmed
	// winners to the Confirmer on its own.
	emitter.Subscribe(events.EventBlockInserted, func(ev events.Event) {
		hashHex, _ := ev.Data["hash"].(string)
		accountHex, _ := ev.Data["account"].(string)
		previousHex, _ := ev.Data["previous"].(string)
		isOpen, _ := ev.Data["is_open"].(bool)
		height, _ := ev.Data["height"].(uint64)

		hash, err := primitives.BlockHashFromHex(hashHex)
		if err != nil {
			return
		}
		account, err := primitives.AccountFromHex(accountHex)
		if err != nil {
			return
		}
		root := election.RootForPrevious(mustHash(previousHex))
		if isOpen {
			root = election.RootForAccount(account)
		}
		engine.Start(root, hash, account, height)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go processor.Run(ctx)

	// ---- transport ----
	cookies := transport.NewCookieStore(0)
	handshaker := transport.NewHandshaker(cookies, nodeKey)
	regCfg := transport.RegistryConfig{
		MaxPeers:     cfg.MaxPeersPerIP * 64,
		MaxPerIP:     cfg.MaxPeersPerIP,
		MaxPerSubnet: cfg.MaxPeersPerSubnet,
		BandwidthLimit: map[transport.TrafficType]transport.BandwidthConfig{
			transport.TrafficGeneric:   {Limit: cfg.Bandwidth.Limit, BurstRatio: cfg.Bandwidth.BurstRatio},
			transport.TrafficVotes:     {Limit: cfg.Bandwidth.Limit / 4, BurstRatio: cfg.Bandwidth.BurstRatio},
			transport.TrafficBootstrap: {Limit: cfg.Bandwidth.Limit / 2, BurstRatio: cfg.Bandwidth.BurstRatio},
		},
	}
	registry := transport.NewRegistry(regCfg, handshaker)

	peers := p2p.NewPeerStore(4096)
	rep := p2p.NewRepresentative(nodeKey, nodeKey.Public().Account(), now)

	pipelineCfg := p2p.PipelineConfig{QueueCapacity: 65536, DedupMaxElements: 1 << 20, KeepaliveFanoutLen: 8}
	pipeline, err := p2p.New(pipelineCfg, params, registry, processor, router, engine, peers, rep)
	if err != nil {
		log.Fatalf("p2p pipeline: %v", err)
	}
	go pipeline.Run(ctx, 4)

	addr := fmt.Sprintf(":%d", cfg.PeeringPort)
	if err := registry.Listen(addr); err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer registry.Stop()
	log.Printf("Peering listening on %s", addr)

	for _, sp := range cfg.SeedPeers {
		if _, err := registry.Dial(sp.Addr); err != nil {
			log.Printf("seed peer %s (%s): %v", sp.NodeID, sp.Addr, err)
			continue
		}
		log.Printf("Dialed seed peer %s (%s)", sp.NodeID, sp.Addr)
	}

	// ---- periodic cookie purge ----
	purgeTicker := time.NewTicker(transport.CookieTTL)
	defer purgeTicker.Stop()
	go func() {
		for {
			select {
			case <-purgeTicker.C:
				cookies.Purge()
			case <-ctx.Done():
				return
			}
		}
	}()

	// ---- graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")

	// Stop ingesting new work before tearing down transport and storage.
	cancel()

	// Deferred calls run in LIFO: registry.Stop -> db.Close
	log.Println("Shutdown complete.")
}

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

func loadOrCreateKey(path string) (crypto.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		priv, _, genErr := crypto.GenerateKeyPair()
		if genErr != nil {
			return nil, genErr
		}
		if writeErr := os.WriteFile(path, []byte(priv.Hex()+"\n"), 0600); writeErr != nil {
			return nil, writeErr
		}
		log.Printf("Generated new node key at %s", path)
		return priv, nil
	}
	return crypto.PrivKeyFromHex(strings.TrimSpace(string(data)))
}

func mustHash(s string) primitives.BlockHash {
	h, err := primitives.BlockHashFromHex(s)
	if err != nil {
		return primitives.BlockHash{}
	}
	return h
}
