// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package finalizer turns a sufficiently signed packet into a network
// transaction.
package finalizer

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btchal/packet"
	"github.com/btcsuite/btchal/signer"
	"github.com/davecgh/go-spew/spew"
)

// Config holds the collaborators of a Finalizer.
type Config struct {
	// Solver builds spending proofs for inputs that are not finalized
	// yet. It defaults to PsbtSolver.
	Solver ScriptSolver

	// Verify runs every input of the finished transaction through the
	// script engine. It requires Signer.
	Verify bool

	// Signer provides the signature cache used by verification.
	Signer *signer.Context
}

// Finalizer produces the signed transaction of a packet.
type Finalizer struct {
	cfg Config
}

// New creates a Finalizer.
func New(cfg Config) *Finalizer {
	if cfg.Solver == nil {
		cfg.Solver = PsbtSolver{}
	}

	return &Finalizer{cfg: cfg}
}

// Finalize returns the signed transaction of p: a copy of the unsigned
// transaction with every input's scriptSig and witness filled in.
//
// Inputs that already carry final scripts keep them, all others go through
// the solver. If any input cannot be satisfied, a single ErrIncomplete error
// listing every such input is returned and no transaction is produced. The
// packet itself is never modified.
func (f *Finalizer) Finalize(p *packet.Packet) (*wire.MsgTx, error) {
	tx := p.UnsignedTx.Copy()

	var (
		failed []int
		errs   []error
	)
	for idx := range p.Inputs {
		final, err := f.resolve(p, idx)
		if err != nil {
			log.Debugf("Input %d not finalizable: %v", idx, err)

			failed = append(failed, idx)
			errs = append(errs, fmt.Errorf("input %d: %w", idx, err))

			continue
		}

		tx.TxIn[idx].SignatureScript = final.ScriptSig
		tx.TxIn[idx].Witness = final.Witness
	}

	if len(failed) > 0 {
		return nil, packet.Error{
			Code: packet.ErrIncomplete,
			Desc: fmt.Sprintf("unable to finalize inputs %v", failed),
			Err:  errors.Join(errs...),

			Inputs: failed,
		}
	}

	if f.cfg.Verify {
		if err := f.verify(p, tx); err != nil {
			return nil, err
		}
	}

	log.Infof("Finalized tx %v", tx.TxHash())
	log.Tracef("Final tx: %v", newLogClosure(func() string {
		return spew.Sdump(tx)
	}))

	return tx, nil
}

// resolve returns the spending proof of input idx.
func (f *Finalizer) resolve(p *packet.Packet, idx int) (packet.FinalScripts,
	error) {

	switch state := p.Inputs[idx].State().(type) {
	case packet.Finalized:
		return state.FinalScripts, nil

	case packet.PartiallySigned, packet.Unsigned:
		return f.cfg.Solver.Satisfy(p, idx)

	default:
		return packet.FinalScripts{}, fmt.Errorf("unknown input "+
			"state %T", state)
	}
}

// verify executes the script of every input of tx. It is skipped with a
// warning if any spent output is unknown.
func (f *Finalizer) verify(p *packet.Packet, tx *wire.MsgTx) error {
	var sigCache *txscript.SigCache
	if f.cfg.Signer != nil {
		sigCache = f.cfg.Signer.SigCache()
	}

	prevOuts := make([]*wire.TxOut, len(p.Inputs))
	for idx := range p.Inputs {
		txOut, err := signer.SpentOutput(p, idx)
		if err != nil {
			log.Warnf("Skipping script verification: %v", err)
			return nil
		}
		prevOuts[idx] = txOut
	}

	fetcher := signer.PrevOutFetcher(p)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	var (
		failed []int
		errs   []error
	)
	for idx, prevOut := range prevOuts {
		vm, err := txscript.NewEngine(
			prevOut.PkScript, tx, idx, txscript.StandardVerifyFlags,
			sigCache, sigHashes, prevOut.Value, fetcher,
		)
		if err == nil {
			err = vm.Execute()
		}
		if err != nil {
			failed = append(failed, idx)
			errs = append(errs, fmt.Errorf("input %d: %w", idx, err))
		}
	}

	if len(failed) > 0 {
		return packet.Error{
			Code: packet.ErrCrypto,
			Desc: fmt.Sprintf("script verification failed for "+
				"inputs %v", failed),
			Err:  errors.Join(errs...),

			Inputs: failed,
		}
	}

	log.Debugf("Verified scripts of %d inputs", len(prevOuts))

	return nil
}
