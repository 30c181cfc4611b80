package native

import (
	"fmt"

	"aionchain/core/types"
	"aionchain/native/msc"
	"aionchain/native/trs"
	"aionchain/observability/metrics"
	"aionchain/state"
)

// Fixed addresses of the precompiled contract families.
var (
	MultiSigAddress = types.MustAddressFromHex("a000000000000000000000000000000000000000000000000000000000000001")
	TRSStateAddress = types.MustAddressFromHex("c000000000000000000000000000000000000000000000000000000000000001")
	TRSUseAddress   = types.MustAddressFromHex("c000000000000000000000000000000000000000000000000000000000000002")
)

// Contract is one precompiled state transition. Execute returns the outcome
// for the caller; the error return is reserved for internal invariant
// breaches that must abort the enclosing execution.
type Contract interface {
	Execute(input []byte, nrgLimit uint64) (*types.PrecompiledResult, error)
}

// IsPrecompiled reports whether addr routes to a precompiled contract.
func IsPrecompiled(addr types.Address) bool {
	switch addr {
	case MultiSigAddress, TRSStateAddress, TRSUseAddress:
		return true
	default:
		return false
	}
}

// Route binds the precompiled contract at addr to a tracking child of repo
// so that a failed execution leaves repo untouched.
func Route(addr types.Address, repo *state.Repository, caller types.Address) (Contract, bool) {
	switch addr {
	case MultiSigAddress:
		return msc.New(repo.StartTracking(), caller), true
	case TRSStateAddress:
		return trs.NewStateContract(repo.StartTracking(), caller), true
	case TRSUseAddress:
		return trs.NewUseContract(repo.StartTracking(), caller), true
	default:
		return nil, false
	}
}

func contractName(addr types.Address) string {
	switch addr {
	case MultiSigAddress:
		return "msc"
	case TRSStateAddress:
		return "trs_state"
	case TRSUseAddress:
		return "trs_use"
	default:
		return "unknown"
	}
}

// Execute runs the precompiled contract at addr against repo and records the
// outcome. Contract writes land in repo only when the contract flushed them.
func Execute(repo *state.Repository, caller, addr types.Address, input []byte, nrgLimit uint64) (*types.PrecompiledResult, error) {
	contract, ok := Route(addr, repo, caller)
	if !ok {
		return nil, fmt.Errorf("native: no precompiled contract at %s", addr)
	}
	res, err := contract.Execute(input, nrgLimit)
	if err != nil {
		metrics.Precompiled().ObserveExecution(contractName(addr), "INTERNAL_ERROR")
		return nil, err
	}
	metrics.Precompiled().ObserveExecution(contractName(addr), res.Code.String())
	return res, nil
}
