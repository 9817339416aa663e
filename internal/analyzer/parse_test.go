package analyzer

import (
	"errors"
	"testing"
)

const goodJSON = `{
  "message": "restless night, likely caffeine related",
  "tags": ["sleep", "caffeine"],
  "observations": ["coffee after 6pm"],
  "questions": ["how late was the last cup?"],
  "potentialPathways": ["caffeine sensitivity"]
}`

func TestParseStrict(t *testing.T) {
	r, err := parseStrict(goodJSON)
	if err != nil {
		t.Fatalf("parseStrict: %v", err)
	}
	if r.Message == "" || len(r.Tags) != 2 || len(r.Pathways) != 1 {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestParseStrict_RejectsUnrelatedJSON(t *testing.T) {
	if _, err := parseStrict(`{"foo": 1}`); err == nil {
		t.Fatal("expected rejection of JSON with no analysis fields")
	}
}

func TestParseRepaired_Fences(t *testing.T) {
	r, err := parseRepaired("Here is the analysis:\n```json\n" + goodJSON + "\n```\nHope that helps!")
	if err != nil {
		t.Fatalf("parseRepaired: %v", err)
	}
	if r.Message != "restless night, likely caffeine related" {
		t.Fatalf("message = %q", r.Message)
	}
}

func TestParseRepaired_TrailingCommasAndEscapes(t *testing.T) {
	raw := `{"message": "felt \~ok today", "tags": ["mood",], "observations": [],}`
	r, err := parseRepaired(raw)
	if err != nil {
		t.Fatalf("parseRepaired: %v", err)
	}
	if len(r.Tags) != 1 || r.Tags[0] != "mood" {
		t.Fatalf("tags = %v", r.Tags)
	}
}

func TestParseExtracted(t *testing.T) {
	// broken everywhere except the two fields the extractor targets
	raw := `{"message": "partial \"analysis\"", "tags": ["a", "b"], "observations": [oops`
	r, err := parseExtracted(raw)
	if err != nil {
		t.Fatalf("parseExtracted: %v", err)
	}
	if r.Message != `partial "analysis"` {
		t.Fatalf("message = %q", r.Message)
	}
	if len(r.Tags) != 2 || r.Tags[1] != "b" {
		t.Fatalf("tags = %v", r.Tags)
	}
}

func TestParseExtracted_NoMessage(t *testing.T) {
	if _, err := parseExtracted(`{"tags": ["x"]}`); err == nil {
		t.Fatal("expected failure without a message field")
	}
}

func TestParseRawFallback(t *testing.T) {
	r, err := parseRawFallback("The entry suggests mild dehydration.")
	if err != nil {
		t.Fatalf("parseRawFallback: %v", err)
	}
	if r.Message != "The entry suggests mild dehydration." {
		t.Fatalf("message = %q", r.Message)
	}
	if _, err := parseRawFallback("   \n"); err == nil {
		t.Fatal("expected failure on blank input")
	}
}

func TestParseResult_ChainOrder(t *testing.T) {
	// strict handles clean JSON
	if r, err := ParseResult(goodJSON); err != nil || len(r.Observations) != 1 {
		t.Fatalf("strict path: %+v, %v", r, err)
	}
	// fenced JSON falls to repair
	if r, err := ParseResult("```json\n" + goodJSON + "\n```"); err != nil || r.Message == "" {
		t.Fatalf("repair path: %+v, %v", r, err)
	}
	// prose falls through to the raw wrap
	r, err := ParseResult("no json at all, just words")
	if err != nil {
		t.Fatalf("raw path: %v", err)
	}
	if r.Message != "no json at all, just words" || len(r.Tags) != 0 {
		t.Fatalf("raw wrap: %+v", r)
	}
	// only emptiness is unparseable
	if _, err := ParseResult("  "); !errors.Is(err, ErrUnparseable) {
		t.Fatalf("got %v, want ErrUnparseable", err)
	}
}
