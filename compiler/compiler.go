// Package compiler wires the pipeline stages of spec §2 together: lex,
// parse, build the AST, type-check, lower to IR, and generate x86-64,
// matching the shape of Compile/CompileFile in the teacher repo.
package compiler

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/cruxlang/crux/compiler/ast"
	"github.com/cruxlang/crux/compiler/codegen"
	"github.com/cruxlang/crux/compiler/diag"
	"github.com/cruxlang/crux/compiler/ir"
	"github.com/cruxlang/crux/compiler/lexer"
	"github.com/cruxlang/crux/compiler/parser"
	"github.com/cruxlang/crux/compiler/typecheck"
)

// Result is what Compile produces: the generated assembly (empty if
// diagnostics were raised — spec §5's resource rule: no a.s without
// successful code generation) plus every diagnostic collected along the
// way (spec §7: type checking always runs to completion before the
// pipeline decides whether to bail).
type Result struct {
	Asm   string
	Diags []diag.Diagnostic
}

func CompileFile(ctx context.Context, name string) (res Result, err error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return Result{}, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, name, text)
}

// Compile runs the full pipeline. A lexer or parser error is a genuine Go
// error (malformed input the grammar itself rejects); once the parse tree
// exists, everything downstream reports through diagnostics instead, so an
// ill-typed but syntactically valid program still gets a full diagnostic
// report rather than stopping at the first problem.
func Compile(ctx context.Context, name string, text []byte) (res Result, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compiler.Compile", "name", name)
	defer tr.Finish("err", &err)

	toks, err := lexer.Tokenize(text)
	if err != nil {
		return Result{}, errors.Wrap(err, "lex %v", name)
	}

	tree, err := parser.Parse(ctx, toks)
	if err != nil {
		return Result{}, errors.Wrap(err, "parse %v", name)
	}

	diags := &diag.Bag{}

	file, err := ast.Build(ctx, tree, diags)
	if err != nil {
		return Result{}, errors.Wrap(err, "build ast %v", name)
	}

	types, err := typecheck.Check(ctx, file, diags)
	if err != nil {
		return Result{}, errors.Wrap(err, "typecheck %v", name)
	}

	if diags.HasErrors() {
		tr.Printw("diagnostics, aborting before codegen", "n", len(diags.All()))
		return Result{Diags: diags.All()}, nil
	}

	prog, err := ir.Lower(ctx, file, types)
	if err != nil {
		return Result{}, errors.Wrap(err, "lower ir %v", name)
	}

	asm, err := codegen.Generate(ctx, prog)
	if err != nil {
		return Result{}, errors.Wrap(err, "codegen %v", name)
	}

	return Result{Asm: asm, Diags: diags.All()}, nil
}
