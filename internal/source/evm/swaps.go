package evm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
)

// blockRange is an inclusive block range.
type blockRange struct {
	from uint64
	to   uint64
}

// splitRange splits a block range into batches of size batchSize.
func splitRange(from, to, batchSize uint64) ([]blockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	ranges := make([]blockRange, 0)
	start := from
	for start <= to {
		remaining := to - start + 1
		var end uint64
		if remaining <= batchSize {
			end = to
		} else {
			end = start + batchSize - 1
		}
		ranges = append(ranges, blockRange{from: start, to: end})
		if end == to {
			break
		}
		start = end + 1
	}

	return ranges, nil
}

// swapVolume accumulates absolute swap amounts for one pool.
type swapVolume struct {
	amount0 *big.Int
	amount1 *big.Int
	swaps   int
}

func newSwapVolume() *swapVolume {
	return &swapVolume{amount0: big.NewInt(0), amount1: big.NewInt(0)}
}

// addSwap decodes a Swap log and adds the absolute traded amounts.
func (v *swapVolume) addSwap(lg types.Log) error {
	parsed, err := poolABI()
	if err != nil {
		return fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := parsed.Unpack("Swap", lg.Data)
	if err != nil {
		return fmt.Errorf("unpack swap: %w", err)
	}
	if len(values) < 2 {
		return fmt.Errorf("swap data has %d values", len(values))
	}
	amount0, err := asBigInt(values[0])
	if err != nil {
		return fmt.Errorf("amount0: %w", err)
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return fmt.Errorf("amount1: %w", err)
	}

	absAdd(v.amount0, amount0)
	absAdd(v.amount1, amount1)
	v.swaps++
	return nil
}

// absAdd adds |v| to sum in place.
func absAdd(sum, v *big.Int) {
	if v.Sign() < 0 {
		sum.Sub(sum, v)
	} else {
		sum.Add(sum, v)
	}
}

// tokenAmount converts a raw integer amount into token units.
func tokenAmount(raw *big.Int, decimals uint8) float64 {
	if raw == nil || raw.Sign() == 0 {
		return 0
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	out, _ := new(big.Float).Quo(
		new(big.Float).SetInt(raw),
		new(big.Float).SetInt(scale),
	).Float64()
	return out
}
