// Package mcp parses notepad MCP command flags and wires the ledger stack.
package mcp

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/stellar-notepad/internal/horizon"
	"github.com/louisbranch/stellar-notepad/internal/platform/config"
	"github.com/louisbranch/stellar-notepad/internal/platform/otel"
	"github.com/louisbranch/stellar-notepad/internal/seqlock"
	"github.com/louisbranch/stellar-notepad/internal/services/notepad/domain"
	"github.com/louisbranch/stellar-notepad/internal/services/notepad/service"
	"github.com/louisbranch/stellar-notepad/internal/services/notepad/storage/sqlite"
	"github.com/louisbranch/stellar-notepad/internal/txbuilder"
)

// Config holds MCP command configuration.
type Config struct {
	HorizonURL        string `env:"STELLAR_NOTEPAD_HORIZON_URL"        envDefault:"https://horizon-testnet.stellar.org"`
	NetworkPassphrase string `env:"STELLAR_NOTEPAD_NETWORK_PASSPHRASE" envDefault:"Test SDF Network ; September 2015"`
	SecretKey         string `env:"STELLAR_NOTEPAD_SECRET_KEY"`
	Transport         string `env:"STELLAR_NOTEPAD_MCP_TRANSPORT"      envDefault:"stdio"`
	HTTPAddr          string `env:"STELLAR_NOTEPAD_MCP_HTTP_ADDR"      envDefault:"localhost:8081"`
	JournalPath       string `env:"STELLAR_NOTEPAD_JOURNAL_PATH"`
	RequireSigner     bool
}

// ParseConfig parses environment and flags into a Config. Flags override env.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HorizonURL, "horizon-url", cfg.HorizonURL, "Horizon gateway base URL")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.JournalPath, "journal-path", cfg.JournalPath, "SQLite submission journal path (empty disables journaling)")
	fs.BoolVar(&cfg.RequireSigner, "require-signer", cfg.RequireSigner, "Fail startup when no signing key is configured")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run wires the ledger stack and starts the MCP server.
func Run(ctx context.Context, cfg Config) error {
	shutdown, err := otel.Setup(ctx, "notepad-mcp")
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	mutator, closeDeps, err := buildMutator(cfg)
	if err != nil {
		return err
	}
	defer closeDeps()

	return service.Run(ctx, service.Config{
		Transport: service.TransportKind(cfg.Transport),
		HTTPAddr:  cfg.HTTPAddr,
	}, mutator)
}

// buildMutator assembles the gateway, signer, lock table, and optional
// journal from configuration. A missing secret key yields a read-only
// deployment unless -require-signer is set.
func buildMutator(cfg Config) (domain.Mutator, func(), error) {
	mutator := domain.Mutator{
		Gateway: horizon.NewClient(cfg.HorizonURL),
		Locks:   seqlock.NewTable(),
		Builder: txbuilder.New(cfg.NetworkPassphrase),
	}

	if cfg.SecretKey != "" {
		signer, err := txbuilder.NewLocalSigner(cfg.SecretKey)
		if err != nil {
			return domain.Mutator{}, nil, fmt.Errorf("load signing key: %w", err)
		}
		mutator.Signer = signer
		log.Printf("signer loaded account=%s", signer.AccountID())
	} else if cfg.RequireSigner {
		return domain.Mutator{}, nil, fmt.Errorf("signing key is required but STELLAR_NOTEPAD_SECRET_KEY is not set")
	} else {
		log.Printf("no signing key configured, running read-only")
	}

	closeDeps := func() {}
	if cfg.JournalPath != "" {
		journal, err := sqlite.Open(cfg.JournalPath)
		if err != nil {
			return domain.Mutator{}, nil, fmt.Errorf("open submission journal: %w", err)
		}
		mutator.Journal = journal
		closeDeps = func() {
			if err := journal.Close(); err != nil {
				log.Printf("close submission journal: %v", err)
			}
		}
		log.Printf("submission journal enabled path=%s", cfg.JournalPath)
	}

	return mutator, closeDeps, nil
}
