// SPDX-License-Identifier: MPL-2.0

package detect

import (
	"errors"
	"slices"
	"testing"

	"github.com/modulebox/modulebox/internal/resolution"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "no requires",
			src:  "var x = 1;",
			want: nil,
		},
		{
			name: "source order",
			src:  "var b = require('./b');\nvar a = require(\"./a.js\");",
			want: []string{"./b", "./a.js"},
		},
		{
			name: "nested in functions",
			src:  "exports.load = function () { return require('lazy'); };",
			want: []string{"lazy"},
		},
		{
			name: "duplicates kept",
			src:  "require('x'); require('x');",
			want: []string{"x", "x"},
		},
		{
			name: "computed argument ignored",
			src:  "var name = 'y'; require(name); require('z');",
			want: []string{"z"},
		},
		{
			name: "member require ignored",
			src:  "loader.require('nope'); require('yes');",
			want: []string{"yes"},
		},
		{
			name: "require call as argument",
			src:  "wrap(require('inner'));",
			want: []string{"inner"},
		},
	}

	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := e.Extract([]byte(tt.src))
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Extract() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtract_SyntaxError(t *testing.T) {
	t.Parallel()

	_, err := New().Extract([]byte("var = require('x'"))
	if !errors.Is(err, resolution.ErrSyntax) {
		t.Fatalf("Extract() error = %v, want ErrSyntax", err)
	}
	if got := resolution.Pack(err).Name; got != "SyntaxError" {
		t.Errorf("Pack().Name = %q, want SyntaxError", got)
	}
}
