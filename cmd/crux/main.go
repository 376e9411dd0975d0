package main

import (
	"context"
	"fmt"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/cruxlang/crux/compiler"
	"github.com/cruxlang/crux/compiler/ast"
	"github.com/cruxlang/crux/compiler/diag"
	"github.com/cruxlang/crux/compiler/lexer"
	"github.com/cruxlang/crux/compiler/parser"
	"github.com/cruxlang/crux/compiler/typecheck"
)

func main() {
	parseCmd := &cli.Command{
		Name:   "parse",
		Action: parseAct,
		Args:   cli.Args{},
	}

	checkCmd := &cli.Command{
		Name:   "check",
		Action: checkAct,
		Args:   cli.Args{},
	}

	compileCmd := &cli.Command{
		Name:   "compile",
		Action: compileAct,
		Args:   cli.Args{},
	}

	app := &cli.Command{
		Name:        "crux",
		Description: "crux compiles Crux source files to x86-64 assembly",
		Commands: []*cli.Command{
			parseCmd,
			checkCmd,
			compileCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

// parseAct prints the bare parse tree, no symbol resolution: a debug
// command for inspecting the grammar stage in isolation.
func parseAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		text, err := os.ReadFile(a)
		if err != nil {
			return errors.Wrap(err, "read %v", a)
		}

		toks, err := lexer.Tokenize(text)
		if err != nil {
			return errors.Wrap(err, "lex %v", a)
		}

		tree, err := parser.Parse(ctx, toks)
		if err != nil {
			return errors.Wrap(err, "parse %v", a)
		}

		fmt.Printf("%+v\n", tree)
	}

	return nil
}

// checkAct runs everything up to and including type checking and prints
// any diagnostics, without generating assembly.
func checkAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	failed := false
	for _, a := range c.Args {
		text, err := os.ReadFile(a)
		if err != nil {
			return errors.Wrap(err, "read %v", a)
		}

		toks, err := lexer.Tokenize(text)
		if err != nil {
			return errors.Wrap(err, "lex %v", a)
		}

		tree, err := parser.Parse(ctx, toks)
		if err != nil {
			return errors.Wrap(err, "parse %v", a)
		}

		diags := &diag.Bag{}
		file, err := ast.Build(ctx, tree, diags)
		if err != nil {
			return errors.Wrap(err, "build ast %v", a)
		}

		if !diags.HasErrors() {
			if _, err := typecheck.Check(ctx, file, diags); err != nil {
				return errors.Wrap(err, "typecheck %v", a)
			}
		}

		for _, d := range diags.All() {
			fmt.Fprintln(os.Stderr, d.String())
			failed = true
		}
	}

	if failed {
		os.Exit(1)
	}
	return nil
}

// compileAct runs the full pipeline and writes the generated assembly to
// "a.s", printing any diagnostics to stderr and exiting nonzero on any of
// them, matching the driver's propagation rule.
func compileAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	failed := false
	for _, a := range c.Args {
		res, err := compiler.CompileFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		for _, d := range res.Diags {
			fmt.Fprintln(os.Stderr, d.String())
		}

		if len(res.Diags) > 0 {
			failed = true
			continue
		}

		if err := os.WriteFile("a.s", []byte(res.Asm), 0o644); err != nil {
			return errors.Wrap(err, "write a.s")
		}
	}

	if failed {
		os.Exit(1)
	}
	return nil
}
