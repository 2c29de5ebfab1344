// SPDX-License-Identifier: MIT
//
// Package rng provides the pass's one deterministic RNG (spec §4.B: "A
// single deterministic RNG is seeded once per module, using a hash of the
// module's name. All transformations draw from this one RNG so that (name,
// configuration) uniquely determines output"), the module code hash, and
// the PBKDF2-style key derivation used by string encryption's rc4-derived
// scheme.
//
// Grounded on the teacher's builder.WithSeed option
// (rand.New(rand.NewSource(seed))): the same stdlib math/rand seeding idiom,
// generalized from "one option among many" to "the one RNG the whole pass
// shares".
package rng

import (
	"hash/fnv"
	"math/rand"

	"github.com/google/uuid"

	"github.com/irobf/obfuscator/ir"
)

// Source is the pass-owned deterministic random source. It is never safe
// for concurrent use — per spec §5 the pass runs on one goroutine, and
// Source carries no locking to match.
type Source struct {
	r *rand.Rand
}

// New seeds a Source from a 64-bit hash of moduleName, so that the same
// module name always starts the same RNG sequence (spec §4.B, §8 property 7).
func New(moduleName string) *Source {
	h := fnv.New64a()
	_, _ = h.Write([]byte(moduleName))
	return &Source{r: rand.New(rand.NewSource(int64(h.Sum64())))}
}

// NewSeeded seeds a Source directly from an int64, for tests and for callers
// that want a fixed reproducible sequence independent of any module name.
func NewSeeded(seed int64) *Source {
	return &Source{r: rand.New(rand.NewSource(seed))}
}

// Intn returns a non-negative pseudo-random int in [0, n).
func (s *Source) Intn(n int) int { return s.r.Intn(n) }

// Int63 returns a non-negative pseudo-random 63-bit integer.
func (s *Source) Int63() int64 { return s.r.Int63() }

// Float64 returns a pseudo-random float64 in [0.0, 1.0).
func (s *Source) Float64() float64 { return s.r.Float64() }

// Bool returns true with probability 0.5.
func (s *Source) Bool() bool { return s.r.Intn(2) == 0 }

// Bytes fills and returns a slice of n pseudo-random bytes, used for
// rc4-simple's 16-byte key and rc4-derived's 8-byte salt (spec §4.G), and by
// Read. Weak-rotating-xor uses a fixed key and draws nothing from here.
func (s *Source) Bytes(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(s.r.Intn(256))
	}
	return out
}

// Read implements io.Reader by drawing from the pass RNG, letting
// uuid.NewRandomFromReader derive artifact names from the same
// deterministic sequence instead of the system entropy pool (SPEC_FULL's
// unique-naming requirement; preserves spec §8 property 7's byte-identical
// re-run guarantee).
func (s *Source) Read(p []byte) (int, error) {
	b := s.Bytes(len(p))
	copy(p, b)
	return len(p), nil
}

// ArtifactName returns prefix+"."+ an 8-hex-character suffix for a
// module-level generated symbol (polymorphic variant, probe function,
// checksum global, bytecode blob, ...). The suffix comes from
// uuid.NewRandomFromReader(s) rather than uuid.New()'s system entropy, so
// the name is still a deterministic function of the pass seed and call
// order (spec §8 property 7's byte-identical re-run guarantee) while
// looking like an ordinary collision-free identifier rather than a visibly
// incrementing counter.
func ArtifactName(s *Source, prefix string) string {
	id, err := uuid.NewRandomFromReader(s)
	if err != nil {
		// s.Read never errors; this path exists only to satisfy the
		// uuid API's signature.
		return prefix
	}
	return prefix + "." + id.String()[:8]
}

// Shuffle randomizes the order of n elements through swap using the pass RNG
// (metamorphic shuffle's block reordering, spec §4.F).
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	s.r.Shuffle(n, swap)
}

// CodeHash computes the 64-bit FNV-1a module code hash of spec §4.B: every
// instruction's opcode mnemonic plus the name of every non-declaration
// function, in module order. Computed once at pass start; used to seed
// rc4-derived keys so string-encryption keys depend on code shape, not just
// the module name.
func CodeHash(m *ir.Module) uint64 {
	h := fnv.New64a()
	for _, fn := range m.Functions() {
		if fn.IsDeclaration {
			continue
		}
		_, _ = h.Write([]byte(fn.Name))
		for _, b := range fn.Blocks {
			for _, inst := range b.Instructions {
				_, _ = h.Write([]byte(inst.Op.String()))
			}
		}
	}
	return h.Sum64()
}

// DeriveKey is the PBKDF2-style derivation of spec §4.B: four parallel
// FNV-1a hash chains, each reseeded from the previous iteration's output,
// run for iters rounds and concatenated, 8 bytes each, into 32 bytes.
//
// This is explicitly NOT cryptographic PBKDF2 (spec §4.B, glossary): its
// only purpose is to raise the work factor of recovering string plaintext
// from a static binary, not to resist a targeted attacker. A real PBKDF2 or
// Argon2 import would overstate the guarantee this system makes (see
// DESIGN.md).
func DeriveKey(password, salt []byte, iters int) [32]byte {
	if iters <= 0 {
		iters = 1
	}
	var chains [4]uint64
	for i := range chains {
		h := fnv.New64a()
		_, _ = h.Write(password)
		_, _ = h.Write(salt)
		_, _ = h.Write([]byte{byte(i)})
		chains[i] = h.Sum64()
	}

	for round := 0; round < iters; round++ {
		for i := range chains {
			h := fnv.New64a()
			_, _ = h.Write(uint64ToBytes(chains[i]))
			_, _ = h.Write(uint64ToBytes(chains[(i+1)%4]))
			_, _ = h.Write(password)
			_, _ = h.Write(salt)
			chains[i] = h.Sum64()
		}
	}

	var out [32]byte
	for i, c := range chains {
		b := uint64ToBytes(c)
		copy(out[i*8:(i+1)*8], b)
	}
	return out
}

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}
