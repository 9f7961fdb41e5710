// main.go - Encrypted-value ledger daemon.
//
// ledgerd hosts a single ledger contract instance and its trusted decryption
// oracle behind HTTP:
//   - mutating endpoints admit ciphertexts and apply state transitions
//   - getter endpoints return opaque handles; /v1/decrypt is the grant-gated
//     reencryption surface
//   - every committed mutation is snapshotted to the configured kv store, so
//     a restart resumes from the last committed state
//
// Usage:
//
//	LEDGERD_OWNER_ADDRESS=0x... go run ./cmd/ledgerd
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/philippgille/gokv"

	"cipherledger/internal/events/kafka"
	"cipherledger/internal/fhe"
	"cipherledger/internal/ledger"
	"cipherledger/internal/store"
)

const version = "1.0.0"

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		fallback := NewLogger("info", "console")
		fallback.Fatal().Err(err).Msg("config load failed")
	}
	log := NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config invalid")
	}

	kv, err := store.InitStore(cfg.StoreType, cfg.StoreDir, cfg.StoreCodec)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer kv.Close()

	owner := common.HexToAddress(cfg.OwnerAddress)
	// The contract identity is the address the owner would deploy to first.
	contract := crypto.CreateAddress(owner, 0)

	ledgerOpts := []ledger.Option{ledger.WithLogger(log)}
	var publisher *kafka.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = kafka.NewPublisher(cfg.KafkaBrokers)
		defer publisher.Close()
		ledgerOpts = append(ledgerOpts, ledger.WithPublisher(publisher))
		log.Info().Strs("brokers", cfg.KafkaBrokers).Msg("kafka publisher enabled")
	}

	cop, led, err := loadOrCreate(kv, contract, owner, cfg.KeyBits, ledgerOpts)
	if err != nil {
		log.Fatal().Err(err).Msg("state init failed")
	}
	log.Info().Str("owner", owner.Hex()).Str("contract", contract.Hex()).
		Msg("ledger ready")

	srv := &Server{
		cfg:     cfg,
		log:     log,
		cop:     cop,
		ledger:  led,
		kv:      kv,
		metrics: NewMetricsCollector(),
		limiter: NewCallerRateLimiter(cfg.RateMaxTokens, time.Duration(cfg.RateRefillSecs)*time.Second),
		health:  NewHealthChecker(version),
	}
	srv.health.RegisterComponent("store", func() error {
		var probe fhe.State
		_, err := kv.Get(store.KeyCoprocessor, &probe)
		return err
	})
	srv.health.RegisterComponent("oracle", func() error {
		h := cop.TrivialEncrypt(1)
		v, err := cop.Decrypt64(h, contract)
		if err != nil {
			return err
		}
		if v != 1 {
			return errors.New("oracle roundtrip mismatch")
		}
		return nil
	})

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
	if err := srv.persist(); err != nil {
		log.Error().Err(err).Msg("final snapshot failed")
	}
}

// loadOrCreate restores coprocessor and ledger from the kv store, or creates
// fresh instances when no snapshot exists. A coprocessor snapshot without a
// ledger snapshot is treated as fresh state, not an error: the ledger
// snapshot is written second, so its absence means the first mutation never
// committed.
func loadOrCreate(kv gokv.Store, contract, owner common.Address, bits int, opts []ledger.Option) (*fhe.Coprocessor, *ledger.Ledger, error) {
	var copState fhe.State
	found, err := kv.Get(store.KeyCoprocessor, &copState)
	if err != nil {
		return nil, nil, err
	}
	if found {
		cop, err := fhe.RestoreCoprocessor(&copState)
		if err != nil {
			return nil, nil, err
		}
		var ledState ledger.State
		found, err := kv.Get(store.KeyLedger, &ledState)
		if err != nil {
			return nil, nil, err
		}
		if found {
			return cop, ledger.RestoreLedger(cop, &ledState, opts...), nil
		}
		return cop, ledger.NewLedger(cop, owner, opts...), nil
	}

	cop, err := fhe.NewCoprocessor(contract, bits)
	if err != nil {
		return nil, nil, err
	}
	return cop, ledger.NewLedger(cop, owner, opts...), nil
}
