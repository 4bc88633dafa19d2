package consensus

import "sort"

// MedianTimePast returns the median of the timestamps of the last
// MTPWindow blocks ending at the tip of chain (spec.md §4.8). For chains
// shorter than the window, all available timestamps are used. An empty
// chain has no MTP; callers must not invoke this before height 1.
func MedianTimePast(chain []Block) int64 {
	n := len(chain)
	if n == 0 {
		return 0
	}
	start := n - MTPWindow
	if start < 0 {
		start = 0
	}
	window := make([]int64, 0, n-start)
	for i := start; i < n; i++ {
		window = append(window, chain[i].Header.Timestamp)
	}
	sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
	return window[len(window)/2]
}

// CheckTimestamp enforces spec.md §4.6 rule 3: the candidate timestamp
// must strictly exceed the chain's MTP and must not exceed now+drift.
func CheckTimestamp(chain []Block, candidateTimestamp int64, now int64) error {
	if len(chain) > 0 {
		mtp := MedianTimePast(chain)
		if candidateTimestamp <= mtp {
			return rejectf(ErrBadTimestamp, "timestamp %d does not exceed median-time-past %d", candidateTimestamp, mtp)
		}
	}
	if candidateTimestamp > now+MaxFutureDrift {
		return rejectf(ErrBadTimestamp, "timestamp %d exceeds now+drift %d", candidateTimestamp, now+MaxFutureDrift)
	}
	return nil
}
