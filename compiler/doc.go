/*

Process of compilation

Program Text ->
	lex, parse ->
Parse Tree ->
	build, resolve symbols ->
Abstract Syntax Tree (ast) ->
	typecheck ->
Abstract Syntax Tree + Types ->
	lower ->
Intermediate Representation (ir) ->
	generate ->
x86-64 Assembly Text

*/
package compiler
