package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestPackageErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  *PackageError
		want string
	}{
		{
			name: "not package without part",
			err:  &PackageError{Kind: NotPackage, Message: "zip open failed"},
			want: "not a document package: zip open failed",
		},
		{
			name: "not package with part",
			err:  &PackageError{Kind: NotPackage, Part: "word/document.xml", Message: "part absent"},
			want: "not a document package: missing word/document.xml: part absent",
		},
		{
			name: "malformed with part",
			err:  &PackageError{Kind: MalformedPackage, Part: "word/document.xml", Message: "bad XML"},
			want: "malformed package part word/document.xml: bad XML",
		},
		{
			name: "malformed without part",
			err:  &PackageError{Kind: MalformedPackage, Message: "truncated"},
			want: "malformed package: truncated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPackageErrorPredicates(t *testing.T) {
	notPkg := fmt.Errorf("wrapped: %w", &PackageError{Kind: NotPackage, Message: "nope"})
	malformed := fmt.Errorf("wrapped: %w", &PackageError{Kind: MalformedPackage, Message: "bad"})

	if !IsNotPackage(notPkg) {
		t.Error("IsNotPackage = false for wrapped NotPackage error")
	}
	if IsNotPackage(malformed) {
		t.Error("IsNotPackage = true for malformed error")
	}
	if !IsMalformedPackage(malformed) {
		t.Error("IsMalformedPackage = false for wrapped MalformedPackage error")
	}
	if IsMalformedPackage(errors.New("plain")) {
		t.Error("IsMalformedPackage = true for plain error")
	}
}

func TestUnwrapDefaults(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"package error", &PackageError{Kind: NotPackage}, ErrInvalidInput},
		{"parse error", &ParseError{Format: "BibTeX"}, ErrInvalidInput},
		{"fetch error", &FetchError{StyleID: "apa"}, ErrNotFound},
		{"validation error", &ValidationError{Field: "level"}, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("errors.Is(%T, %v) = false, want true", tt.err, tt.want)
			}
		})
	}
}

func TestUnwrapExplicit(t *testing.T) {
	inner := errors.New("inner")
	pe := &ParseError{Format: "XML", Err: inner}
	if !errors.Is(pe, inner) {
		t.Error("ParseError with explicit Err does not unwrap to it")
	}
	ioe := &IOError{Operation: "read", Path: "/x", Err: inner}
	if !errors.Is(ioe, inner) {
		t.Error("IOError does not unwrap to underlying error")
	}
}

func TestParseErrorMessage(t *testing.T) {
	withPath := &ParseError{Format: "BibTeX", Path: "refs.bib", Message: "unexpected token"}
	if got := withPath.Error(); !strings.Contains(got, "refs.bib") || !strings.Contains(got, "BibTeX") {
		t.Errorf("Error() = %q, want path and format mentioned", got)
	}
	noPath := &ParseError{Format: "frontmatter", Message: "bad value"}
	want := "failed to parse frontmatter: bad value"
	if got := noPath.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) != nil")
	}
	base := errors.New("base")
	wrapped := Wrap(base, "context")
	if !errors.Is(wrapped, base) {
		t.Error("Wrap loses error chain")
	}
	if got := wrapped.Error(); got != "context: base" {
		t.Errorf("Wrap message = %q, want %q", got, "context: base")
	}

	wf := Wrapf(base, "op %s", "x")
	if !errors.Is(wf, base) {
		t.Error("Wrapf loses error chain")
	}
	if got := wf.Error(); got != "op x: base" {
		t.Errorf("Wrapf message = %q, want %q", got, "op x: base")
	}
}
