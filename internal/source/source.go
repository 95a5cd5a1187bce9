// Package source loads domain lists from text files of unknown encoding.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/Normaleshok/domain-checker/internal/domain"
)

// ErrUnreadableFile is matched by every *UnreadableFileError.
var ErrUnreadableFile = errors.New("no candidate encoding decodes file")

type UnreadableFileError struct {
	Path  string
	Tried []string
}

func (e *UnreadableFileError) Error() string {
	return fmt.Sprintf("read %s: %v (tried %s)", e.Path, ErrUnreadableFile, strings.Join(e.Tried, ", "))
}

func (e *UnreadableFileError) Unwrap() error { return ErrUnreadableFile }

// Encoding is one candidate in the detection ladder. Decode reports false
// when the input is not valid in this encoding.
type Encoding struct {
	Name   string
	Decode func([]byte) (string, bool)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var (
	UTF8 = Encoding{Name: "utf-8", Decode: func(b []byte) (string, bool) {
		if bytes.HasPrefix(b, utf8BOM) || !utf8.Valid(b) {
			return "", false
		}
		return string(b), true
	}}
	UTF8BOM = Encoding{Name: "utf-8-bom", Decode: func(b []byte) (string, bool) {
		if !bytes.HasPrefix(b, utf8BOM) || !utf8.Valid(b) {
			return "", false
		}
		out, err := unicode.UTF8BOM.NewDecoder().Bytes(b)
		if err != nil {
			return "", false
		}
		return string(out), true
	}}
	Windows1251 = Encoding{Name: "windows-1251", Decode: func(b []byte) (string, bool) {
		return decodeWith(charmap.Windows1251, b)
	}}
	CP866 = Encoding{Name: "cp866", Decode: func(b []byte) (string, bool) {
		return decodeWith(charmap.CodePage866, b)
	}}
)

// DefaultEncodings is the fixed detection order.
var DefaultEncodings = []Encoding{UTF8, UTF8BOM, Windows1251, CP866}

// decodeWith treats U+FFFD or a C1 control in the output as a decode
// failure: single-byte charmaps map undefined bytes to one of those
// instead of returning an error.
func decodeWith(enc encoding.Encoding, b []byte) (string, bool) {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", false
	}
	undefined := bytes.ContainsFunc(out, func(r rune) bool {
		return r == utf8.RuneError || (r >= 0x80 && r <= 0x9F)
	})
	if undefined {
		return "", false
	}
	return string(out), true
}

// List is a loaded domain sequence and the encoding that decoded it.
type List struct {
	Path     string
	Encoding string
	Domains  []domain.Domain
}

// Set is a de-duplicated domain collection.
type Set map[domain.Domain]struct{}

func (s Set) Has(d domain.Domain) bool {
	_, ok := s[d]
	return ok
}

type Loader struct {
	Encodings []Encoding
}

func NewLoader() *Loader {
	return &Loader{Encodings: DefaultEncodings}
}

// Load reads path as an ordered sequence. Every non-blank line becomes one
// normalized domain; duplicates are kept.
func (l *Loader) Load(path string) (*List, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	tried := make([]string, 0, len(l.Encodings))
	for _, enc := range l.Encodings {
		text, ok := enc.Decode(raw)
		if !ok {
			tried = append(tried, enc.Name)
			continue
		}
		return &List{Path: path, Encoding: enc.Name, Domains: splitLines(text)}, nil
	}
	return nil, &UnreadableFileError{Path: path, Tried: tried}
}

// LoadSet reads path as a set.
func (l *Loader) LoadSet(path string) (Set, *List, error) {
	list, err := l.Load(path)
	if err != nil {
		return nil, nil, err
	}
	set := make(Set, len(list.Domains))
	for _, d := range list.Domains {
		set[d] = struct{}{}
	}
	return set, list, nil
}

func splitLines(text string) []domain.Domain {
	var out []domain.Domain
	for _, line := range strings.Split(text, "\n") {
		if d := domain.Normalize(line); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// Intersect keeps the domains of main that are in whitelist, in main's
// first-occurrence order, each at most once.
func Intersect(main []domain.Domain, whitelist Set) []domain.Domain {
	kept := lo.Filter(main, func(d domain.Domain, _ int) bool {
		return whitelist.Has(d)
	})
	return lo.Uniq(kept)
}
