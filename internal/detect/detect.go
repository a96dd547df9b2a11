// SPDX-License-Identifier: MPL-2.0

// Package detect finds the modules a JavaScript source file requires.
package detect

import (
	"github.com/modulebox/modulebox/internal/resolution"

	"github.com/robertkrimen/otto/ast"
	"github.com/robertkrimen/otto/parser"
)

const requireName = "require"

type (
	// Extractor collects the string literals passed to require calls.
	Extractor struct{}

	collector struct {
		ids []string
	}
)

// New returns an Extractor.
func New() *Extractor { return &Extractor{} }

// Extract parses src and returns the first argument of every require call
// whose argument is a string literal, in source order. Calls with computed
// arguments are ignored. Source that does not parse yields a
// *resolution.SyntaxError.
func (*Extractor) Extract(src []byte) ([]string, error) {
	program, err := parser.ParseFile(nil, "", src, 0)
	if err != nil {
		return nil, &resolution.SyntaxError{Message: err.Error()}
	}

	c := &collector{}
	ast.Walk(c, program)
	return c.ids, nil
}

// Enter implements ast.Visitor.
func (c *collector) Enter(n ast.Node) ast.Visitor {
	call, ok := n.(*ast.CallExpression)
	if !ok || len(call.ArgumentList) == 0 {
		return c
	}
	callee, ok := call.Callee.(*ast.Identifier)
	if !ok || callee.Name != requireName {
		return c
	}
	if lit, ok := call.ArgumentList[0].(*ast.StringLiteral); ok {
		c.ids = append(c.ids, lit.Value)
	}
	return c
}

// Exit implements ast.Visitor.
func (*collector) Exit(ast.Node) {}
