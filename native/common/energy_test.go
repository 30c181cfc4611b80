package common

import (
	"testing"

	"aionchain/core/types"
)

func TestCheckEnergy(t *testing.T) {
	const cost = 21000

	if res := CheckEnergy(cost, cost); res != nil {
		t.Fatalf("limit at cost rejected with %v", res.Code)
	}
	if res := CheckEnergy(TxEnergyMax, cost); res != nil {
		t.Fatalf("limit at cap rejected with %v", res.Code)
	}

	res := CheckEnergy(cost-1, cost)
	if res == nil || res.Code != types.OutOfEnergy {
		t.Fatalf("below-cost limit: %+v", res)
	}
	if res.EnergyRemaining != 0 {
		t.Fatalf("out-of-energy kept %d energy", res.EnergyRemaining)
	}

	res = CheckEnergy(TxEnergyMax+1, cost)
	if res == nil || res.Code != types.InvalidEnergyLimit {
		t.Fatalf("above-cap limit: %+v", res)
	}
	if res.EnergyRemaining != TxEnergyMax+1 {
		t.Fatalf("invalid limit refunded %d, want full limit", res.EnergyRemaining)
	}
}
