// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package signer produces and checks ECDSA signatures for PSBT inputs.
//
// All signing and verification goes through a Context. It is created once at
// process start and carries everything that would otherwise be process-wide
// state: the network parameters keys are checked against and the signature
// cache used by the script engine.
package signer

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// DefaultSigCacheSize is the number of entries kept in the signature cache
// when Config.SigCacheSize is zero.
const DefaultSigCacheSize = 1000

// Config holds the parameters of a Context.
type Config struct {
	// ChainParams is the network keys and addresses belong to. It
	// defaults to mainnet.
	ChainParams *chaincfg.Params

	// SigCacheSize is the maximum number of verified signatures cached.
	SigCacheSize uint
}

// Context is the explicit signing context shared by every sign and verify
// call. It is safe for concurrent use.
type Context struct {
	params   *chaincfg.Params
	sigCache *txscript.SigCache
}

// NewContext creates a signing context.
func NewContext(cfg Config) *Context {
	params := cfg.ChainParams
	if params == nil {
		params = &chaincfg.MainNetParams
	}

	size := cfg.SigCacheSize
	if size == 0 {
		size = DefaultSigCacheSize
	}

	log.Debugf("Signing context for %s with a %d entry signature cache",
		params.Name, size)

	return &Context{
		params:   params,
		sigCache: txscript.NewSigCache(size),
	}
}

// ChainParams returns the network of the context.
func (c *Context) ChainParams() *chaincfg.Params {
	return c.params
}

// SigCache returns the signature cache to hand to the script engine.
func (c *Context) SigCache() *txscript.SigCache {
	return c.sigCache
}
