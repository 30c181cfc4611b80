package common

import "aionchain/core/types"

// TxEnergyMax is the hard per-transaction energy cap imposed by the virtual
// machine.
const TxEnergyMax uint64 = 2_000_000

// CheckEnergy applies the shared energy preconditions of every precompiled
// contract. It returns a non-nil result when the limit is unusable: below
// cost the caller forfeits everything, above the VM cap the caller keeps the
// full limit.
func CheckEnergy(nrgLimit, cost uint64) *types.PrecompiledResult {
	if nrgLimit < cost {
		return types.Fail(types.OutOfEnergy, 0)
	}
	if nrgLimit > TxEnergyMax {
		return types.Fail(types.InvalidEnergyLimit, nrgLimit)
	}
	return nil
}
