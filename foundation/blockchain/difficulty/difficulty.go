// Package difficulty describes the proof of work puzzle a block must solve.
// A Difficulty is an immutable value that travels with each block, so two
// blocks in the same chain can carry different targets.
package difficulty

import (
	"fmt"
	"math"
	"math/bits"
)

// MaxHashWidth is the number of bytes produced by the block hash function.
const MaxHashWidth = 32

// MaxNonceWidth is the widest nonce space a block can search.
const MaxNonceWidth = 64

// Default represents the platform constants used by the chain with the
// lowest difficulty level. Use WithLevel to derive the per-block value.
var Default = New(16, 8, 1, 1, 32)

// ConfigError is returned when a Difficulty describes a puzzle that can't
// be evaluated or can't be solved within its nonce space.
type ConfigError struct {
	Difficulty Difficulty
	Reason     string
}

// Error implements the error interface.
func (ce *ConfigError) Error() string {
	return fmt.Sprintf("difficulty configuration %s: %s", ce.Difficulty, ce.Reason)
}

// =============================================================================

// Difficulty represents the parameters of the proof of work puzzle.
type Difficulty struct {
	HashWidth      uint `json:"hash_width"`       // Number of digest bytes the puzzle examines.
	BaseTargetBits uint `json:"base_target_bits"` // Leading zero bits required at level 1.
	Step           uint `json:"step"`             // Additional zero bits for each level above 1.
	Level          uint `json:"level"`            // The per block difficulty multiplier.
	NonceWidth     uint `json:"nonce_width"`      // Bit-width of the nonce search space.
}

// New constructs a Difficulty. Construction never fails, the values are
// checked by Validate the first time the difficulty is put to use.
func New(hashWidth, baseTargetBits, step, level, nonceWidth uint) Difficulty {
	return Difficulty{
		HashWidth:      hashWidth,
		BaseTargetBits: baseTargetBits,
		Step:           step,
		Level:          level,
		NonceWidth:     nonceWidth,
	}
}

// WithLevel returns a copy of the difficulty with the specified level.
func (d Difficulty) WithLevel(level uint) Difficulty {
	d.Level = level
	return d
}

// EffectiveTargetBits returns the number of leading zero bits a digest
// must have to solve the puzzle. The result saturates at math.MaxUint
// instead of wrapping, so a larger level never yields a smaller target.
func (d Difficulty) EffectiveTargetBits() uint {
	if d.Level == 0 {
		return d.BaseTargetBits
	}

	hi, extra := bits.Mul64(uint64(d.Step), uint64(d.Level-1))
	if hi != 0 || extra > math.MaxUint {
		return math.MaxUint
	}

	sum, carry := bits.Add64(uint64(d.BaseTargetBits), extra, 0)
	if carry != 0 || sum > math.MaxUint {
		return math.MaxUint
	}

	return uint(sum)
}

// ExpectedAttempts returns the average number of hashes required to find
// a solution for this difficulty.
func (d Difficulty) ExpectedAttempts() float64 {
	return math.Exp2(float64(d.EffectiveTargetBits()))
}

// NonceSpace returns the largest nonce value that can be searched.
func (d Difficulty) NonceSpace() uint64 {
	if d.NonceWidth >= MaxNonceWidth {
		return math.MaxUint64
	}

	return 1<<d.NonceWidth - 1
}

// Validate checks the difficulty describes a puzzle that can be evaluated
// and is reachable inside the nonce space.
func (d Difficulty) Validate() error {
	switch {
	case d.HashWidth == 0, d.BaseTargetBits == 0, d.Step == 0, d.Level == 0, d.NonceWidth == 0:
		return &ConfigError{Difficulty: d, Reason: "all fields must be positive"}

	case d.HashWidth > MaxHashWidth:
		return &ConfigError{Difficulty: d, Reason: fmt.Sprintf("hash width is larger than %d bytes", MaxHashWidth)}

	case d.NonceWidth > MaxNonceWidth:
		return &ConfigError{Difficulty: d, Reason: fmt.Sprintf("nonce width is larger than %d bits", MaxNonceWidth)}
	}

	// Bound the fields before combining them so the target can't overflow.
	digestBits := d.HashWidth * 8
	if d.BaseTargetBits > digestBits || d.Level-1 > (digestBits-d.BaseTargetBits)/d.Step {
		return &ConfigError{Difficulty: d, Reason: fmt.Sprintf("target exceeds the %d bit digest", digestBits)}
	}

	target := d.EffectiveTargetBits()

	if target > d.NonceWidth {
		return &ConfigError{Difficulty: d, Reason: fmt.Sprintf("target of %d bits is not reachable in a %d bit nonce space", target, d.NonceWidth)}
	}

	return nil
}

// MeetsTarget reports whether the leading EffectiveTargetBits of the digest
// are zero. An invalid difficulty never meets its target.
func (d Difficulty) MeetsTarget(digest []byte) bool {
	if d.Validate() != nil {
		return false
	}

	if uint(len(digest)) < d.HashWidth {
		return false
	}

	target := d.EffectiveTargetBits()
	fullBytes := target / 8
	remainBits := target % 8

	for i := uint(0); i < fullBytes; i++ {
		if digest[i] != 0 {
			return false
		}
	}

	if remainBits > 0 {
		mask := byte(0xFF << (8 - remainBits))
		if digest[fullBytes]&mask != 0 {
			return false
		}
	}

	return true
}

// String implements the fmt.Stringer interface.
func (d Difficulty) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d,%d]", d.HashWidth, d.BaseTargetBits, d.Step, d.Level, d.NonceWidth)
}
