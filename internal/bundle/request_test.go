// SPDX-License-Identifier: MPL-2.0

package bundle

import (
	"errors"
	"net/url"
	"slices"
	"testing"

	"github.com/modulebox/modulebox/internal/resolution"
)

func TestParseQuery(t *testing.T) {
	t.Parallel()

	valid := func() url.Values {
		return url.Values{
			ParamFrom:    {`"/lib/a.js"`},
			ParamNormal:  {`["/single.js"]`},
			ParamSpecial: {`[]`},
			ParamRequest: {`["./b", "c"]`},
		}
	}

	req, err := ParseQuery(valid())
	if err != nil {
		t.Fatalf("ParseQuery() error = %v", err)
	}
	if req.From != "/lib/a.js" || req.StartDir() != "/lib" {
		t.Errorf("From = %q, StartDir() = %q", req.From, req.StartDir())
	}
	if !slices.Equal(req.Request, []string{"./b", "c"}) {
		t.Errorf("Request = %v", req.Request)
	}
	if !slices.Equal(req.Acquired, []string{"/single.js"}) || len(req.AcquiredSpecial) != 0 {
		t.Errorf("Acquired = %v, AcquiredSpecial = %v", req.Acquired, req.AcquiredSpecial)
	}

	single := valid()
	single.Set(ParamRequest, `"/single.js"`)
	if req, err := ParseQuery(single); err != nil || !slices.Equal(req.Request, []string{"/single.js"}) {
		t.Errorf("ParseQuery(single request) = %v, %v", req.Request, err)
	}

	tests := []struct {
		name   string
		param  string
		value  *string
		reject string
	}{
		{"no from", ParamFrom, nil, ParamFrom},
		{"not json from", ParamFrom, ptr("bad"), ParamFrom},
		{"null from", ParamFrom, ptr("null"), ParamFrom},
		{"no normal", ParamNormal, nil, ParamNormal},
		{"not json normal", ParamNormal, ptr("bad"), ParamNormal},
		{"null normal", ParamNormal, ptr("null"), ParamNormal},
		{"null in normal", ParamNormal, ptr("[null]"), ParamNormal},
		{"no special", ParamSpecial, nil, ParamSpecial},
		{"object special", ParamSpecial, ptr(`{"a":1}`), ParamSpecial},
		{"number in special", ParamSpecial, ptr("[1]"), ParamSpecial},
		{"no request", ParamRequest, nil, ParamRequest},
		{"not json request", ParamRequest, ptr("bad"), ParamRequest},
		{"empty request", ParamRequest, ptr("[]"), ParamRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q := valid()
			if tt.value == nil {
				q.Del(tt.param)
			} else {
				q.Set(tt.param, *tt.value)
			}

			_, err := ParseQuery(q)
			if !errors.Is(err, resolution.ErrInvalidParameter) {
				t.Fatalf("ParseQuery() error = %v, want ErrInvalidParameter", err)
			}
			var pe *resolution.InvalidParameterError
			if !errors.As(err, &pe) || pe.Parameter != tt.reject {
				t.Errorf("rejected parameter = %+v, want %q", pe, tt.reject)
			}
			if got := resolution.Pack(err).Code; got != resolution.CodeInvalidParameter {
				t.Errorf("code = %q, want %q", got, resolution.CodeInvalidParameter)
			}
		})
	}
}

func TestRequest_StartDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/index.js", "/"},
		{"/modules/simple/index.js", "/modules/simple"},
		{"lib/a.js", "/lib"},
	}
	for _, tt := range tests {
		if got := (Request{From: tt.from}).StartDir(); got != tt.want {
			t.Errorf("StartDir(%q) = %q, want %q", tt.from, got, tt.want)
		}
	}
}

func ptr(s string) *string { return &s }
