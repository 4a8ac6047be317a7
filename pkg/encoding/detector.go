// Package encoding detects obfuscated payloads by attempting a bounded set
// of decodings. A failed decode is a first-class NotDecodable outcome, never
// an error: obfuscation only matters when the decoded form trips another
// detection tier.
package encoding

import (
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxDecodeDepth caps recursive decode-and-revalidate passes. Crafted
// nested encodings beyond this depth are left undecoded.
const MaxDecodeDepth = 2

type Scheme string

const (
	SchemeURL     Scheme = "url"
	SchemeHex     Scheme = "hex"
	SchemeBase64  Scheme = "base64"
	SchemeUnicode Scheme = "unicode_escape"
)

// Outcome is the result of one decode attempt. Decoded=false means the
// text did not contain a decodable payload for that scheme.
type Outcome struct {
	Scheme  Scheme
	Text    string
	Decoded bool
}

var (
	reHexBlob       = regexp.MustCompile(`0x[0-9a-fA-F]{8,}`)
	reBase64Run     = regexp.MustCompile(`[A-Za-z0-9+/]{12,}={0,2}`)
	reUnicodeEscape = regexp.MustCompile(`\\u([0-9a-fA-F]{4})`)
	rePercentPair   = regexp.MustCompile(`%[0-9a-fA-F]{2}`)
)

type Detector struct{}

func NewDetector() *Detector {
	return &Detector{}
}

// Decode runs every scheme against the text and returns the outcomes whose
// decode produced a different string.
func (d *Detector) Decode(text string) []Outcome {
	var outcomes []Outcome
	for _, o := range []Outcome{
		d.tryURL(text),
		d.tryHexBlob(text),
		d.tryBase64(text),
		d.tryUnicodeEscapes(text),
	} {
		if o.Decoded {
			outcomes = append(outcomes, o)
		}
	}
	return outcomes
}

// MarkerCount counts distinct encoding markers present in the raw text.
// The scorer uses it as an escalation signal.
func MarkerCount(text string) int {
	n := 0
	if rePercentPair.MatchString(text) {
		n++
	}
	if reHexBlob.MatchString(text) {
		n++
	}
	if reUnicodeEscape.MatchString(text) {
		n++
	}
	if reBase64Run.MatchString(text) {
		n++
	}
	return n
}

func (d *Detector) tryURL(text string) Outcome {
	o := Outcome{Scheme: SchemeURL}
	if !strings.Contains(text, "%") {
		return o
	}
	decoded, err := url.QueryUnescape(text)
	if err != nil || decoded == text {
		return o
	}
	o.Text = decoded
	o.Decoded = true
	return o
}

func (d *Detector) tryHexBlob(text string) Outcome {
	o := Outcome{Scheme: SchemeHex}
	matches := reHexBlob.FindAllString(text, -1)
	var decoded []string
	for _, m := range matches {
		raw, err := hex.DecodeString(m[2:])
		if err != nil {
			continue
		}
		if s := string(raw); isPrintable(s) {
			decoded = append(decoded, s)
		}
	}
	if len(decoded) == 0 {
		return o
	}
	o.Text = strings.Join(decoded, " ")
	o.Decoded = true
	return o
}

// tryBase64 is best-effort: candidate runs are decoded and kept only when
// the result is readable text, which filters out ordinary alphanumeric
// words that happen to be valid base64.
func (d *Detector) tryBase64(text string) Outcome {
	o := Outcome{Scheme: SchemeBase64}
	matches := reBase64Run.FindAllString(text, -1)
	var decoded []string
	for _, m := range matches {
		raw, err := base64.StdEncoding.DecodeString(m)
		if err != nil {
			raw, err = base64.RawStdEncoding.DecodeString(m)
			if err != nil {
				continue
			}
		}
		if s := string(raw); isPrintable(s) && len(s) > 3 {
			decoded = append(decoded, s)
		}
	}
	if len(decoded) == 0 {
		return o
	}
	o.Text = strings.Join(decoded, " ")
	o.Decoded = true
	return o
}

func (d *Detector) tryUnicodeEscapes(text string) Outcome {
	o := Outcome{Scheme: SchemeUnicode}
	if !reUnicodeEscape.MatchString(text) {
		return o
	}
	decoded := reUnicodeEscape.ReplaceAllStringFunc(text, func(m string) string {
		code, err := strconv.ParseInt(m[2:], 16, 32)
		if err != nil || code < 0 || code > 0x10FFFF {
			return m
		}
		return string(rune(code))
	})
	if decoded == text {
		return o
	}
	o.Text = decoded
	o.Decoded = true
	return o
}

func isPrintable(s string) bool {
	if len(s) == 0 || !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if r == unicode.ReplacementChar {
			return false
		}
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
