package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vctt94/bisonbotkit/logging"

	"github.com/sealdeck/sealdeck/pkg/reveal"
	"github.com/sealdeck/sealdeck/pkg/server"
)

func main() {
	var (
		listenAddr string
		dbPath     string
		ledgerURL  string
		decryptURL string
		debugLevel string
	)
	flag.StringVar(&listenAddr, "listen", "", "Address to listen on (overrides env)")
	flag.StringVar(&dbPath, "db", "", "Path to SQLite database file (created if missing)")
	flag.StringVar(&ledgerURL, "ledger", "", "Base URL of the ledger RPC endpoint")
	flag.StringVar(&decryptURL, "decrypt", "", "Base URL of the decryption service")
	flag.StringVar(&debugLevel, "debuglevel", "", "Logging level: trace, debug, info, warn, error")
	flag.Parse()

	cfg, err := server.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if ledgerURL != "" {
		cfg.LedgerURL = ledgerURL
	}
	if decryptURL != "" {
		cfg.DecryptURL = decryptURL
	}
	if debugLevel != "" {
		cfg.DebugLevel = debugLevel
	}

	logBackend, err := logging.NewLogBackend(logging.LogConfig{
		LogFile:        cfg.LogFile,
		DebugLevel:     cfg.DebugLevel,
		MaxLogFiles:    10,
		MaxBufferLines: 1000,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logging: %v\n", err)
		os.Exit(1)
	}
	log := logBackend.Logger("MAIN")

	db, err := server.NewDatabase(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// The backend credential signs community reveals only; each seat signs
	// for its own hole cards with a per-seat credential.
	backendCred, err := reveal.GenerateCredential()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate backend credential: %v\n", err)
		os.Exit(1)
	}

	coordinator, err := reveal.NewCoordinator(reveal.Config{
		Ledger:    reveal.NewHTTPLedgerClient(cfg.LedgerURL, cfg.RequestTimeout, logBackend.Logger("LDGR")),
		Decrypter: reveal.NewHTTPDecryptClient(cfg.DecryptURL, cfg.RequestTimeout, logBackend.Logger("DCRY")),
		Backend:   backendCred,
		Retry: reveal.RetryPolicy{
			MaxAttempts: cfg.DecryptAttempts,
			Backoff:     reveal.ExponentialBackoff(cfg.DecryptBackoff, cfg.DecryptBackoffM),
		},
		Log: logBackend.Logger("RVEL"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init reveal coordinator: %v\n", err)
		os.Exit(1)
	}

	registry := server.NewRegistry(logBackend.Logger("RGST"))
	srv := server.NewServer(cfg, registry, coordinator, db, logBackend)

	log.Infof("listening on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, srv.Router()); err != nil {
		fmt.Fprintf(os.Stderr, "serve error: %v\n", err)
		os.Exit(1)
	}
}
