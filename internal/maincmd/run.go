package maincmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/mna/mainer"

	"github.com/mna/glacier/glarerr"
	"github.com/mna/glacier/lang/bytecode"
	"github.com/mna/glacier/lang/compiler"
	"github.com/mna/glacier/lang/machine"
)

// Run compiles each program document and executes it on a fresh virtual
// machine, writing its prints to stdout and any compile-time or runtime
// error to stderr in the located format.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, path := range args {
		doc, err := readDocument(path)
		if err != nil {
			return printError(stdio, err)
		}

		chunk, err := c.compile(stdio, doc)
		if err != nil {
			return err
		}

		m := machine.New(c.machineOptions(stdio)...)
		if err := m.Run(chunk); err != nil {
			return printLocated(stdio, doc.Source, err)
		}
	}
	return nil
}

// Disasm compiles each program document and prints the disassembled
// bytecode stream.
func (c *Cmd) Disasm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, path := range args {
		doc, err := readDocument(path)
		if err != nil {
			return printError(stdio, err)
		}

		chunk, err := c.compile(stdio, doc)
		if err != nil {
			return err
		}

		fmt.Fprint(stdio.Stdout, bytecode.Disassemble(chunk))
	}
	return nil
}

func (c *Cmd) compile(stdio mainer.Stdio, doc *document) (*bytecode.Chunk, error) {
	var opts []compiler.Option
	if c.limits.MaxConstants > 0 {
		opts = append(opts, compiler.MaxConstants(c.limits.MaxConstants))
	}
	if c.limits.MaxScopes > 0 {
		opts = append(opts, compiler.MaxScopes(c.limits.MaxScopes))
	}

	chunk, err := compiler.New(opts...).Compile(doc.prog)
	if err != nil {
		return nil, printLocated(stdio, doc.Source, err)
	}
	return chunk, nil
}

func (c *Cmd) machineOptions(stdio mainer.Stdio) []machine.Option {
	opts := []machine.Option{machine.Stdout(stdio.Stdout)}
	if c.limits.MaxStack > 0 {
		opts = append(opts, machine.MaxStack(c.limits.MaxStack))
	}
	if c.limits.GCThreshold > 0 {
		opts = append(opts, machine.GCThreshold(c.limits.GCThreshold))
	}
	return opts
}

// printLocated renders err against the document's source text when it is
// a located error, and falls back to the plain message otherwise.
func printLocated(stdio mainer.Stdio, src string, err error) error {
	var gerr *glarerr.Error
	if errors.As(err, &gerr) {
		fmt.Fprintln(stdio.Stderr, glarerr.Format(src, gerr))
		return err
	}
	return printError(stdio, err)
}
