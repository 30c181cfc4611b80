package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"aionchain/config"
	"aionchain/core/types"
	"aionchain/native"
	"aionchain/observability/logging"
	"aionchain/state"
	"aionchain/storage"
)

func main() {
	var (
		cfgPath = flag.String("config", "./config.toml", "path to the node configuration file")
		toHex   = flag.String("to", "", "destination precompiled contract address (64 hex chars)")
		caller  = flag.String("caller", "", "caller account address (64 hex chars)")
		input   = flag.String("input", "", "call payload, hex encoded")
		nrg     = flag.Uint64("nrg", 2_000_000, "energy limit for the call")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup("aionpc", cfg.LogEnv)

	if err := run(cfg, logger, *toHex, *caller, *input, *nrg); err != nil {
		logger.Error("execution failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, toHex, callerHex, inputHex string, nrgLimit uint64) error {
	to, err := parseAddress(toHex, "to")
	if err != nil {
		return err
	}
	caller, err := parseAddress(callerHex, "caller")
	if err != nil {
		return err
	}
	if !native.IsPrecompiled(to) {
		return fmt.Errorf("address %s is not a precompiled contract", to)
	}
	payload, err := hex.DecodeString(inputHex)
	if err != nil {
		return fmt.Errorf("decode input: %w", err)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	repo := state.NewRepository(db)
	res, err := native.Execute(repo, caller, to, payload, nrgLimit)
	if err != nil {
		return err
	}
	if res.Code == types.Success {
		if err := repo.Flush(); err != nil {
			return fmt.Errorf("persist state: %w", err)
		}
	}

	logger.Info("executed precompiled contract",
		"network", cfg.Network,
		"contract", to.String(),
		"caller", caller.String(),
		"code", res.Code.String(),
		"energy_remaining", res.EnergyRemaining,
		"output", hex.EncodeToString(res.Output),
	)
	return nil
}

func parseAddress(s, name string) (types.Address, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return types.Address{}, fmt.Errorf("decode %s address: %w", name, err)
	}
	addr, err := types.AddressFromBytes(raw)
	if err != nil {
		return types.Address{}, fmt.Errorf("parse %s address: %w", name, err)
	}
	return addr, nil
}
