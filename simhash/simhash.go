// Package simhash fingerprints archived pages so that two downloads of the
// same site can be compared for content changes.
package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
)

// ChangeThreshold is the largest Hamming distance at which two page
// fingerprints still count as the same content.
const ChangeThreshold = 3

// Fingerprint computes a 64-bit SimHash of text using lower-cased words as
// features. Empty or whitespace-only text yields 0.
func Fingerprint(text string) uint64 {
	words := strings.Fields(strings.ToLower(text))
	return fromFeatures(words)
}

// fromFeatures accumulates the FNV-64a hash of every feature into a signed
// bit vector and keeps the bits that ended up positive.
func fromFeatures(features []string) uint64 {
	if len(features) == 0 {
		return 0
	}

	var vector [64]int
	h := fnv.New64a()
	for _, f := range features {
		h.Reset()
		h.Write([]byte(f))
		sum := h.Sum64()
		for i := range vector {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i, v := range vector {
		if v > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Changed reports whether next differs from prev by more than
// ChangeThreshold bits. A zero fingerprint on either side means nothing was
// measured, which is never reported as a change.
func Changed(prev, next uint64) bool {
	if prev == 0 || next == 0 {
		return false
	}
	return Distance(prev, next) > ChangeThreshold
}
