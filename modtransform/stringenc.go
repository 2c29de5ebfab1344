// SPDX-License-Identifier: MIT
package modtransform

import (
	"crypto/rc4"

	"github.com/irobf/obfuscator/config"
	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/metrics"
	"github.com/irobf/obfuscator/rng"
)

// weakXORKey is the static byte weak-rotating-xor XORs every plaintext byte
// with (spec §4.G).
const weakXORKey = 0x42

// StringEncryption scans m's globals for constant string-like initializers
// and encrypts each one under ctx.Cfg.StringScheme (spec §4.G). It is
// idempotent across cycles: once a global is encrypted, IsString is cleared
// so it is never selected again ("idempotent on already-encrypted globals",
// spec §4.H). Returns one EncryptedString record per global encrypted this
// call.
//
// No pack example implements RC4 or a PBKDF2-shaped derivation; crypto/rc4
// and rng.DeriveKey (grounded on the teacher's WithSeed idiom, see
// rng/rng.go) are the only candidates, so the rc4-simple/rc4-derived
// schemes use stdlib crypto/rc4 directly (see DESIGN.md).
func StringEncryption(ctx Context) []EncryptedString {
	var records []EncryptedString
	for _, g := range ctx.Module.Globals() {
		if !g.IsString || !g.Constant {
			continue
		}

		var ciphertext, key, salt []byte
		switch ctx.Cfg.StringScheme {
		case config.SchemeRC4Simple:
			key = ctx.RNG.Bytes(16)
			ciphertext = rc4Crypt(key, g.Initializer)
		case config.SchemeRC4Derived:
			salt = ctx.RNG.Bytes(8)
			derived := rng.DeriveKey(codeHashBytes(ctx.CodeHash), salt, ctx.Cfg.PBKDF2Iters)
			key = derived[:]
			ciphertext = rc4Crypt(key, g.Initializer)
		default: // weak-rotating-xor
			ciphertext = xorCrypt(g.Initializer, weakXORKey)
		}

		g.Initializer = ciphertext
		g.IsString = false
		g.Constant = false
		g.Linkage = ir.LinkagePrivate

		records = append(records, EncryptedString{
			Global: g, Scheme: ctx.Cfg.StringScheme, Key: key, Salt: salt,
		})
		ctx.Metrics.Inc(metrics.StringEncrypts)
	}
	return records
}

func xorCrypt(data []byte, key byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key
	}
	return out
}

func rc4Crypt(key, data []byte) []byte {
	c, err := rc4.NewCipher(key)
	if err != nil {
		// A 16- or 32-byte key is always in RC4's valid [1,256] range;
		// this can only fire on a programmer error upstream.
		panic("modtransform: invalid RC4 key length: " + err.Error())
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out
}

func codeHashBytes(h uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(h >> (8 * i))
	}
	return b
}
