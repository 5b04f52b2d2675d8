// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/btcsuite/btchal/finalizer"
	"github.com/btcsuite/btchal/packet"
	"github.com/btcsuite/btchal/txinfo"
	"github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/fn/v2"
	"golang.org/x/sync/errgroup"
)

// outputFilePerm is the permission of PSBT files written by the tool.
const outputFilePerm = 0o644

// outputOptions selects where a resulting packet is written.
type outputOptions struct {
	Output    string `short:"o" long:"output" description:"Where to save the resulting PSBT file"`
	RawStdout bool   `short:"r" long:"raw-stdout" description:"Output the raw bytes of the result to stdout"`
}

// psbtCommand groups the PSBT subcommands.
type psbtCommand struct{}

// addCommands registers the command tree on parser.
func (a *app) addCommands(parser *flags.Parser) error {
	group, err := parser.AddCommand("psbt", "Partially signed Bitcoin "+
		"transactions", "Create, inspect, edit, combine, sign and "+
		"finalize partially signed Bitcoin transactions.",
		&psbtCommand{})
	if err != nil {
		return err
	}

	commands := []struct {
		name  string
		short string
		long  string
		data  any
	}{{
		name:  "create",
		short: "Create a PSBT from an unsigned raw transaction",
		long:  "Create an empty PSBT around the hex encoded unsigned transaction.",
		data:  &createCommand{app: a},
	}, {
		name:  "decode",
		short: "Decode a PSBT to JSON",
		long:  "Print every field of the PSBT, the fee when all spent outputs are known and flag partial signatures that do not verify.",
		data:  &decodeCommand{app: a},
	}, {
		name:  "edit",
		short: "Edit a PSBT",
		long:  "Set fields of one input or one output. Without -o or -r the result is written back in the encoding it was read in, a file argument is rewritten in place.",
		data:  &editCommand{app: a},
	}, {
		name:  "finalize",
		short: "Finalize a PSBT and print the fully signed tx in hex",
		long:  "Build the final scriptSig and witness of every input and print the network transaction.",
		data:  &finalizeCommand{app: a},
	}, {
		name:  "merge",
		short: "Merge multiple PSBTs into one",
		long:  "Combine PSBTs of the same unsigned transaction. Fields set to different values in different PSBTs are an error.",
		data:  &mergeCommand{app: a},
	}, {
		name:  "rawsign",
		short: "Sign one input of a PSBT with a private key",
		long:  "Sign an input with a WIF or hex private key, or with every matching derivation of an extended private key. The key is read from the terminal when omitted.",
		data:  &rawSignCommand{app: a},
	}}

	for _, c := range commands {
		_, err := group.AddCommand(c.name, c.short, c.long, c.data)
		if err != nil {
			return err
		}
	}

	return nil
}

// writePacket serializes p according to opts. When neither option is set the
// packet goes back to src, or to stdout in base64 if src is nil.
func (a *app) writePacket(p *packet.Packet, opts outputOptions,
	src *psbtSource) error {

	raw, err := p.Encode()
	if err != nil {
		return err
	}

	switch {
	case opts.Output != "":
		return writeFile(opts.Output, raw)

	case opts.RawStdout:
		_, err := a.stdout.Write(raw)
		return err

	case src != nil && src.path != "":
		return writeFile(src.path, src.encoding.encode(raw))

	case src != nil:
		_, err := a.stdout.Write(src.encoding.encode(raw))
		return err

	default:
		_, err := a.stdout.Write(encodingBase64.encode(raw))
		return err
	}
}

func writeFile(path string, contents []byte) error {
	if err := os.WriteFile(path, contents, outputFilePerm); err != nil {
		return fmt.Errorf("error writing output file: %w", err)
	}

	log.Debugf("Wrote %d bytes to %s", len(contents), path)

	return nil
}

// createCommand is `hal psbt create`.
type createCommand struct {
	app *app

	Out outputOptions `group:"Output Options"`

	Args struct {
		RawTx string `positional-arg-name:"raw-tx" description:"The raw transaction in hex" required:"yes"`
	} `positional-args:"yes"`
}

// Execute implements flags.Commander.
func (c *createCommand) Execute(_ []string) error {
	tx, err := packet.ParseTx(c.Args.RawTx)
	if err != nil {
		return err
	}

	p, err := packet.New(tx)
	if err != nil {
		return err
	}

	return c.app.writePacket(p, c.Out, nil)
}

// decodeCommand is `hal psbt decode`.
type decodeCommand struct {
	app *app

	Args struct {
		PSBT string `positional-arg-name:"psbt" description:"The PSBT file or raw PSBT in base64/hex" required:"yes"`
	} `positional-args:"yes"`
}

// Execute implements flags.Commander.
func (c *decodeCommand) Execute(_ []string) error {
	p, _, err := loadPacket(c.Args.PSBT)
	if err != nil {
		return err
	}

	return txinfo.Write(
		c.app.stdout, c.app.decoder.Packet(p), c.app.format,
	)
}

// editCommand is `hal psbt edit`.
type editCommand struct {
	app *app

	InputIdx  *int `long:"input-idx" description:"The input index to edit"`
	OutputIdx *int `long:"output-idx" description:"The output index to edit"`

	NonWitnessUtxo     *string  `long:"non-witness-utxo" description:"The non-witness UTXO field in hex (full transaction)"`
	WitnessUtxo        *string  `long:"witness-utxo" description:"The witness UTXO field in hex (only output)"`
	PartialSigs        *string  `long:"partial-sigs" description:"Set partial sigs <pubkey>:<signature>,..."`
	PartialSigsAdd     []string `long:"partial-sigs-add" description:"Add a partial sig pair <pubkey>:<signature>"`
	SighashType        *string  `long:"sighash-type" description:"The sighash type"`
	RedeemScript       *string  `long:"redeem-script" description:"The redeem script"`
	WitnessScript      *string  `long:"witness-script" description:"The witness script"`
	HDKeyPaths         *string  `long:"hd-keypaths" description:"The HD wallet keypaths <pubkey>:<master-fp>:<path>,..."`
	HDKeyPathsAdd      []string `long:"hd-keypaths-add" description:"Add an HD wallet keypath <pubkey>:<master-fp>:<path>"`
	FinalScriptSig     *string  `long:"final-script-sig" description:"Set final script signature"`
	FinalScriptWitness *string  `long:"final-script-witness" description:"Set final script witness as comma-separated hex values"`

	Out outputOptions `group:"Output Options"`

	Args struct {
		PSBT string `positional-arg-name:"psbt" description:"PSBT to edit, either base64/hex or a file path" required:"yes"`
	} `positional-args:"yes"`
}

// fieldEdit is one field assignment requested on the command line.
type fieldEdit struct {
	field packet.Field
	value string
}

// edits returns the requested assignments in a fixed order.
func (c *editCommand) edits() []fieldEdit {
	var edits []fieldEdit
	single := func(field packet.Field, value *string) {
		if value != nil {
			edits = append(edits, fieldEdit{field, *value})
		}
	}
	multi := func(field packet.Field, values []string) {
		for _, value := range values {
			edits = append(edits, fieldEdit{field, value})
		}
	}

	single(packet.FieldNonWitnessUtxo, c.NonWitnessUtxo)
	single(packet.FieldWitnessUtxo, c.WitnessUtxo)
	single(packet.FieldPartialSigs, c.PartialSigs)
	multi(packet.FieldPartialSigsAdd, c.PartialSigsAdd)
	single(packet.FieldSighashType, c.SighashType)
	single(packet.FieldRedeemScript, c.RedeemScript)
	single(packet.FieldWitnessScript, c.WitnessScript)
	single(packet.FieldHDKeyPaths, c.HDKeyPaths)
	multi(packet.FieldHDKeyPathsAdd, c.HDKeyPathsAdd)
	single(packet.FieldFinalScriptSig, c.FinalScriptSig)
	single(packet.FieldFinalScriptWitness, c.FinalScriptWitness)

	return edits
}

// Execute implements flags.Commander.
func (c *editCommand) Execute(_ []string) error {
	target, err := packet.NewTarget(
		fn.OptionFromPtr(c.InputIdx), fn.OptionFromPtr(c.OutputIdx),
	)
	if err != nil {
		return err
	}

	p, src, err := loadPacket(c.Args.PSBT)
	if err != nil {
		return err
	}

	for _, e := range c.edits() {
		p, err = packet.Edit(p, target, e.field, e.value)
		if err != nil {
			return err
		}
	}

	return c.app.writePacket(p, c.Out, &src)
}

// finalizeCommand is `hal psbt finalize`.
type finalizeCommand struct {
	app *app

	RawStdout bool `short:"r" long:"raw-stdout" description:"Output the raw bytes of the result to stdout"`
	Verify    bool `long:"verify" description:"Execute the scripts of the final transaction before printing it"`

	Args struct {
		PSBT string `positional-arg-name:"psbt" description:"PSBT to finalize, either base64/hex or a file path" required:"yes"`
	} `positional-args:"yes"`
}

// Execute implements flags.Commander.
func (c *finalizeCommand) Execute(_ []string) error {
	p, _, err := loadPacket(c.Args.PSBT)
	if err != nil {
		return err
	}

	f := finalizer.New(finalizer.Config{
		Verify: c.Verify,
		Signer: c.app.signer,
	})
	tx, err := f.Finalize(p)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return err
	}

	if c.RawStdout {
		_, err = c.app.stdout.Write(buf.Bytes())
	} else {
		_, err = fmt.Fprintln(c.app.stdout, hex.EncodeToString(buf.Bytes()))
	}

	return err
}

// mergeCommand is `hal psbt merge`.
type mergeCommand struct {
	app *app

	Out outputOptions `group:"Output Options"`

	Args struct {
		PSBTs []string `positional-arg-name:"psbts" description:"PSBTs to merge; can be file paths or base64/hex" required:"1"`
	} `positional-args:"yes"`
}

// Execute implements flags.Commander.
func (c *mergeCommand) Execute(_ []string) error {
	packets, err := loadPackets(c.Args.PSBTs)
	if err != nil {
		return err
	}

	merged, err := packet.Merge(packets...)
	if err != nil {
		return err
	}

	return c.app.writePacket(merged, c.Out, nil)
}

// loadPackets loads every argument concurrently. The result keeps the order
// of args.
func loadPackets(args []string) ([]*packet.Packet, error) {
	packets := make([]*packet.Packet, len(args))

	var g errgroup.Group
	for i, arg := range args {
		g.Go(func() error {
			p, _, err := loadPacket(arg)
			if err != nil {
				return fmt.Errorf("psbt %d: %w", i, err)
			}

			packets[i] = p

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return packets, nil
}

// rawSignCommand is `hal psbt rawsign`.
type rawSignCommand struct {
	app *app

	Xprv bool `long:"xprv" description:"The key is an extended private key, sign with every key derived from it along the input's BIP32 paths"`

	Out outputOptions `group:"Output Options"`

	Args struct {
		PSBT     string `positional-arg-name:"psbt" description:"PSBT to sign, either base64/hex or a file path" required:"yes"`
		InputIdx int    `positional-arg-name:"input-idx" description:"The input index to sign" required:"yes"`
		PrivKey  string `positional-arg-name:"priv-key" description:"The private key in WIF or hex, read from the terminal if omitted"`
	} `positional-args:"yes"`
}

// Execute implements flags.Commander.
func (c *rawSignCommand) Execute(_ []string) error {
	p, src, err := loadPacket(c.Args.PSBT)
	if err != nil {
		return err
	}

	keyStr := c.Args.PrivKey
	if keyStr == "" {
		keyStr, err = c.app.promptKey()
		if err != nil {
			return err
		}
	}

	signed, err := c.sign(p, keyStr)
	if err != nil {
		return err
	}

	return c.app.writePacket(signed, c.Out, &src)
}

func (c *rawSignCommand) sign(p *packet.Packet, keyStr string) (*packet.Packet,
	error) {

	ctx := c.app.signer
	idx := c.Args.InputIdx

	if c.Xprv {
		xprv, err := ctx.ParseExtendedKey(keyStr)
		if err != nil {
			return nil, err
		}

		return ctx.RawSignExtended(p, idx, xprv)
	}

	key, err := ctx.ParsePrivateKey(keyStr)
	if err != nil {
		return nil, err
	}
	defer key.Zero()

	return ctx.RawSign(p, idx, key)
}
