package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnparseable is returned when every parsing strategy fails. The
// coordinator treats this like any other analyzer failure (retried up to
// the retry bound).
var ErrUnparseable = errors.New("analyzer response unparseable")

// ParseResult converts raw model output into a Result by trying an ordered
// chain of strategies:
//
//  1. strict JSON decode;
//  2. repair of common formatting damage (markdown fences, trailing
//     commas, bad escapes) followed by a decode;
//  3. regex extraction of the message and tags fields;
//  4. wrapping the raw text itself as the message.
//
// Each strategy is pure and independently testable. Only when all four fail
// (in practice: empty input) does ParseResult return ErrUnparseable.
func ParseResult(raw string) (*Result, error) {
	if r, err := parseStrict(raw); err == nil {
		return r, nil
	}
	if r, err := parseRepaired(raw); err == nil {
		return r, nil
	}
	if r, err := parseExtracted(raw); err == nil {
		return r, nil
	}
	if r, err := parseRawFallback(raw); err == nil {
		return r, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnparseable, clip(raw, 120))
}

// parseStrict decodes raw as-is. A decoded object with no message and no
// tags is rejected so that valid-but-unrelated JSON falls through to the
// later strategies.
func parseStrict(raw string) (*Result, error) {
	var r Result
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, err
	}
	if r.Message == "" && len(r.Tags) == 0 {
		return nil, errors.New("decoded JSON carries no analysis fields")
	}
	return &r, nil
}

var (
	fenceRE         = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	trailingCommaRE = regexp.MustCompile(`,\s*([}\]])`)
	badEscapeRE     = regexp.MustCompile(`\\([^"\\/bfnrtu])`)
)

// parseRepaired strips markdown fences, removes trailing commas, fixes
// illegal backslash escapes, and retries the strict decode. Models wrap
// JSON in fences often enough that this stage carries most of the load.
func parseRepaired(raw string) (*Result, error) {
	s := strings.TrimSpace(raw)

	if m := fenceRE.FindStringSubmatch(s); len(m) == 2 {
		s = m[1]
	} else {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}

	// keep only the outermost object when the model adds prose around it
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			s = s[i : j+1]
		}
	}

	s = trailingCommaRE.ReplaceAllString(s, "$1")
	s = badEscapeRE.ReplaceAllString(s, `\\$1`)

	return parseStrict(s)
}

var (
	messageFieldRE = regexp.MustCompile(`"message"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	tagsFieldRE    = regexp.MustCompile(`"tags"\s*:\s*\[([^\]]*)\]`)
	tagItemRE      = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
)

// parseExtracted pulls message and tags out of broken JSON field by field.
// The remaining list fields are abandoned: a partial record beats a retry
// loop over output that will never decode.
func parseExtracted(raw string) (*Result, error) {
	m := messageFieldRE.FindStringSubmatch(raw)
	if m == nil {
		return nil, errors.New("no message field found")
	}
	r := &Result{Message: unescape(m[1])}

	if tm := tagsFieldRE.FindStringSubmatch(raw); tm != nil {
		for _, item := range tagItemRE.FindAllStringSubmatch(tm[1], -1) {
			if tag := strings.TrimSpace(unescape(item[1])); tag != "" {
				r.Tags = append(r.Tags, tag)
			}
		}
	}
	return r, nil
}

// parseRawFallback wraps the raw text as the message. Fails only when the
// response is effectively empty.
func parseRawFallback(raw string) (*Result, error) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "`")
	s = strings.TrimSpace(strings.TrimPrefix(s, "json"))
	if s == "" {
		return nil, errors.New("empty response")
	}
	return &Result{Message: s}, nil
}

func unescape(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
