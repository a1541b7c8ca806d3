package commitment

import (
	"math/big"
	"testing"

	"github.com/plasmafold/rollup/field"
)

func TestInitDepositDeterministic(t *testing.T) {
	a := InitDeposit(10)
	b := InitDeposit(10)
	if a != b {
		t.Fatal("InitDeposit is not deterministic")
	}
}

func TestInitDepositSensitiveToBlockNumber(t *testing.T) {
	a := InitDeposit(10)
	b := InitDeposit(11)
	if a == b {
		t.Fatal("different block numbers produced the same init hash")
	}
}

func TestInitTransferSensitiveToFees(t *testing.T) {
	a := InitTransfer(1, big.NewInt(0))
	b := InitTransfer(1, big.NewInt(1))
	if a == b {
		t.Fatal("different total fees produced the same init hash")
	}
}

func TestFinalizeDeterministic(t *testing.T) {
	init := InitDeposit(5)
	data := []bool{true, false, true, true}
	c1, b1 := Finalize(init, data)
	c2, b2 := Finalize(init, data)
	if !c1.Equal(&c2) || b1 != b2 {
		t.Fatal("Finalize is not deterministic")
	}
}

func TestFinalizeFitsInCapacity(t *testing.T) {
	init := InitDeposit(1)
	data := make([]bool, 500)
	for i := range data {
		data[i] = i%3 == 0
	}
	commit, _ := Finalize(init, data)
	if !field.FitsInBits(field.ToBigInt(commit), field.Capacity) {
		t.Fatal("commitment does not fit in field.Capacity bits")
	}
}

func TestFinalizeSensitiveToPublicData(t *testing.T) {
	init := InitDeposit(1)
	c1, _ := Finalize(init, []bool{true, false})
	c2, _ := Finalize(init, []bool{false, true})
	if c1.Equal(&c2) {
		t.Fatal("different public data produced the same commitment")
	}
}
