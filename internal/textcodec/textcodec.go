// Package textcodec converts setting values between character sets.
//
// Settings files may declare the charset they are written in. When text
// conversion is enabled, every value read from such a file is converted
// into the internal charset of the process before it is stored.
package textcodec

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
)

// DefaultInternalCharset is used when no internal charset is configured.
const DefaultInternalCharset = "utf8"

// Recoder converts text written in charset into the internal charset.
type Recoder interface {
	Recode(text, charset string) (string, error)
	InternalCharset() string
}

// Codec is a Recoder backed by the golang.org/x/text encoding tables.
type Codec struct {
	internal string
	target   encoding.Encoding
}

// New returns a Codec converting into internalCharset. An unknown charset
// name is an error.
func New(internalCharset string) (*Codec, error) {
	if internalCharset == "" {
		internalCharset = DefaultInternalCharset
	}
	target, err := Lookup(internalCharset)
	if err != nil {
		return nil, err
	}
	return &Codec{internal: internalCharset, target: target}, nil
}

// InternalCharset returns the charset values are converted into.
func (c *Codec) InternalCharset() string {
	return c.internal
}

// Recode converts text from charset into the internal charset. Text whose
// charset matches the internal one is returned untouched.
func (c *Codec) Recode(text, charset string) (string, error) {
	if charset == "" || sameCharset(charset, c.internal) {
		return text, nil
	}
	source, err := Lookup(charset)
	if err != nil {
		return text, err
	}

	decoded, err := source.NewDecoder().String(text)
	if err != nil {
		return text, fmt.Errorf("failed to decode %s text: %w", charset, err)
	}
	encoded, err := c.target.NewEncoder().String(decoded)
	if err != nil {
		return text, fmt.Errorf("failed to encode %s text: %w", c.internal, err)
	}
	return encoded, nil
}

// Lookup resolves a charset name such as "utf8", "iso-8859-1" or
// "windows-1252" to its encoding.
func Lookup(name string) (encoding.Encoding, error) {
	normalized := normalize(name)
	if enc, err := htmlindex.Get(normalized); err == nil {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(normalized)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", name)
	}
	return enc, nil
}

func sameCharset(a, b string) bool {
	return strings.ReplaceAll(normalize(a), "-", "") == strings.ReplaceAll(normalize(b), "-", "")
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
