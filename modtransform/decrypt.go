// SPDX-License-Identifier: MIT
package modtransform

import (
	"github.com/irobf/obfuscator/config"
	"github.com/irobf/obfuscator/ir"
	"github.com/irobf/obfuscator/irutil"
	"github.com/irobf/obfuscator/rng"
)

const rc4DeclName = "rc4_decrypt"

// EmitDecryptConstructor synthesizes the module constructor spec §4.H's
// pipeline driver step 4 calls for once, after the final cycle: one
// function that inverts every recorded string-encryption in place at
// program load. weak-rotating-xor gets a trivial inline decrypt loop per
// record (spec §4.G); the rc4-based schemes instead call a declared
// `rc4_decrypt` helper — the real RC4 key schedule belongs to the runtime
// library the out-of-scope backend links against (spec §1), not to this
// IR, so the helper is declared, not defined, and each record supplies its
// own already-derived key as a private global.
//
// Returns false (no constructor emitted) if there is nothing to decrypt or
// decrypt-at-startup is off.
func EmitDecryptConstructor(ctx Context, records []EncryptedString) bool {
	if len(records) == 0 || !ctx.Cfg.DecryptAtStartup {
		return false
	}

	fn := &ir.Function{
		Name: rng.ArtifactName(ctx.RNG, "__obf_decrypt_strings"), RetType: "void",
		Linkage: ir.LinkagePrivate, Generated: true,
	}
	_ = ctx.Module.AddFunction(fn)

	cur := irutil.CreateBlock(fn, "entry")
	for _, rec := range records {
		if rec.Scheme == config.SchemeWeakXOR {
			cur = appendWeakXORDecryptLoop(ctx.Names, fn, cur, rec)
		} else {
			cur = appendRC4DecryptCall(ctx, fn, cur, rec)
		}
	}
	irutil.TerminateRet(cur, nil)

	irutil.AppendGlobalConstructor(ctx.Module, 65535, fn)
	return true
}

// appendWeakXORDecryptLoop builds a counted loop over rec.Global's bytes,
// XORing each one with weakXORKey in place, and returns the block execution
// continues in after the loop.
func appendWeakXORDecryptLoop(names *irutil.Namer, fn *ir.Function, cur *ir.BasicBlock, rec EncryptedString) *ir.BasicBlock {
	length := int64(len(rec.Global.Initializer))

	idxPtr := names.FreshName("decrypt.idx.ptr")
	irutil.BuildAlloca(cur, idxPtr, "i32")
	irutil.BuildStore(cur, ir.LocalValue(idxPtr), ir.ConstValue(0))

	head := irutil.CreateBlock(fn, names.FreshName("decrypt.head"))
	irutil.TerminateBrUncond(cur, head)

	idx := irutil.BuildLoad(head, names.FreshName("decrypt.idx"), "i32", ir.LocalValue(idxPtr)).Result
	cond := irutil.BuildICmp(head, names.FreshName("decrypt.cond"), ir.LocalValue(idx), ir.ConstValue(length)).Result

	body := irutil.CreateBlock(fn, names.FreshName("decrypt.body"))
	after := irutil.CreateBlock(fn, names.FreshName("decrypt.after"))
	irutil.TerminateBr(head, ir.LocalValue(cond), body, after)

	ptr := irutil.BuildGEP(body, names.FreshName("decrypt.ptr"), "i8*", ir.GlobalValue(rec.Global.Name), ir.LocalValue(idx)).Result
	loaded := irutil.BuildLoad(body, names.FreshName("decrypt.byte"), "i8", ir.LocalValue(ptr)).Result
	xored := irutil.BuildArith(body, ir.OpXor, names.FreshName("decrypt.xored"), "i8", ir.LocalValue(loaded), ir.ConstValue(weakXORKey)).Result
	irutil.BuildStore(body, ir.LocalValue(ptr), ir.LocalValue(xored))
	idxNext := irutil.BuildArith(body, ir.OpAdd, names.FreshName("decrypt.idx.next"), "i32", ir.LocalValue(idx), ir.ConstValue(1)).Result
	irutil.BuildStore(body, ir.LocalValue(idxPtr), ir.LocalValue(idxNext))
	irutil.TerminateBrUncond(body, head)

	return after
}

// appendRC4DecryptCall emits a call to the declared rc4_decrypt helper for
// one rc4-simple or rc4-derived record, storing its key bytes in a fresh
// private global first.
func appendRC4DecryptCall(ctx Context, fn *ir.Function, cur *ir.BasicBlock, rec EncryptedString) *ir.BasicBlock {
	m := ctx.Module
	ensureRC4Declaration(m)

	keyGlobal, err := irutil.CreateGlobalVariable(m, rng.ArtifactName(ctx.RNG, "decrypt.key"), "i8*", rec.Key, true, ir.LinkagePrivate)
	if err != nil {
		return cur
	}

	irutil.BuildCall(cur, "", "void", rc4DeclName,
		ir.GlobalValue(rec.Global.Name), ir.ConstValue(int64(len(rec.Global.Initializer))),
		ir.GlobalValue(keyGlobal.Name), ir.ConstValue(int64(len(rec.Key))))
	return cur
}

func ensureRC4Declaration(m *ir.Module) {
	if _, ok := m.Function(rc4DeclName); ok {
		return
	}
	decl := &ir.Function{
		Name:          rc4DeclName,
		IsDeclaration: true,
		RetType:       "void",
		Params: []ir.Param{
			{Name: "buf", Type: "i8*"}, {Name: "buflen", Type: "i32"},
			{Name: "key", Type: "i8*"}, {Name: "keylen", Type: "i32"},
		},
	}
	_ = m.AddFunction(decl)
}
