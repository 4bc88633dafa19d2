package consensus

import "math/big"

// NextTarget computes expected_target(chain, height) (spec.md §4.3),
// dispatching on ruleset. chain must hold exactly the blocks preceding
// height (len(chain) == height); this mirrors how the engine always has
// the full prefix in hand when validating or appending a block.
//
// v4 and v5 differ ONLY in which quantity decides the retarget boundary:
// v5 gates on the next height, v4 gates on len(chain). spec.md §9 asks
// that these stay as separate functions rather than one parameterized
// implementation that happens to coincide in the common case — a
// reorg-time replay of an old v4 chain must reproduce the original,
// height-naive boundary decision bit-for-bit.
func NextTarget(chain []Block, height uint64, ruleset Ruleset) ([32]byte, error) {
	if ruleset == RulesetV5 {
		return nextTargetV5(chain, height)
	}
	return nextTargetV4(chain, height)
}

func nextTargetV5(chain []Block, height uint64) ([32]byte, error) {
	if height == 0 {
		return MaxTarget, nil
	}
	if height < DifficultyAdjustmentInterval+1 || height%DifficultyAdjustmentInterval != 0 {
		return parentTarget(chain)
	}
	return retarget(chain, height)
}

func nextTargetV4(chain []Block, height uint64) ([32]byte, error) {
	if height == 0 {
		return MaxTarget, nil
	}
	n := uint64(len(chain))
	if n < DifficultyAdjustmentInterval+1 || n%DifficultyAdjustmentInterval != 0 {
		return parentTarget(chain)
	}
	return retarget(chain, height)
}

// parentTarget echoes the tip's target unchanged — the "return the
// parent's target unchanged" branch of spec.md §4.3. An empty chain has
// no parent block at all; spec.md §8 scenario 1 pins that this bootstrap
// case (no blocks yet, requesting a target below the first adjustment
// boundary) still resolves to MaxTarget rather than erroring, matching
// height 0's own rule.
func parentTarget(chain []Block) ([32]byte, error) {
	if len(chain) == 0 {
		return MaxTarget, nil
	}
	return chain[len(chain)-1].Header.Target, nil
}

// retarget applies the clamped big.Int retarget formula shared by both
// rulesets (spec.md §4.3), given the last and first blocks of the
// just-closed adjustment window.
func retarget(chain []Block, height uint64) ([32]byte, error) {
	if uint64(len(chain)) < height {
		return [32]byte{}, rejectf(ErrBadDifficulty, "chain shorter than height")
	}
	if height <= DifficultyAdjustmentInterval {
		return [32]byte{}, rejectf(ErrBadDifficulty, "height %d has no complete adjustment window", height)
	}
	last := chain[height-1]
	first := chain[height-1-DifficultyAdjustmentInterval]

	actual := last.Header.Timestamp - first.Header.Timestamp
	if actual <= 0 {
		return parentTarget(chain)
	}

	expected := TargetBlockTime * int64(DifficultyAdjustmentInterval)
	lowBound := expected / 4
	highBound := expected * 4
	if actual < lowBound {
		actual = lowBound
	}
	if actual > highBound {
		actual = highBound
	}

	oldTarget := new(big.Int).SetBytes(last.Header.Target[:])
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(actual))
	newTarget.Div(newTarget, big.NewInt(expected))

	minT := new(big.Int).SetBytes(MinTarget[:])
	maxT := new(big.Int).SetBytes(MaxTarget[:])
	if newTarget.Cmp(minT) < 0 {
		newTarget = minT
	}
	if newTarget.Cmp(maxT) > 0 {
		newTarget = maxT
	}

	return bigIntToTarget(newTarget)
}

func bigIntToTarget(x *big.Int) ([32]byte, error) {
	var out [32]byte
	if x.Sign() < 0 {
		return out, rejectf(ErrBadDifficulty, "retargeted value is negative")
	}
	b := x.Bytes()
	if len(b) > 32 {
		return out, rejectf(ErrBadDifficulty, "retargeted value overflows 256 bits")
	}
	copy(out[32-len(b):], b)
	return out, nil
}
