package slides

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ogulcanaydogan/research-deck/pkg/types"
)

func slideXML(title, text, desc string) string {
	return fmt.Sprintf("<slide><title>%s</title><text>%s</text><imageDescription>%s</imageDescription></slide>", title, text, desc)
}

func TestParse_MultipleSlides(t *testing.T) {
	doc := "<slides>" + slideXML("One", "- a\n- b", "a red fox") + slideXML("Two", "- c", "a blue whale") + "</slides>"
	res, err := Parse(doc, 2)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Deck) != 2 {
		t.Fatalf("deck len = %d, want 2", len(res.Deck))
	}
	want := types.SlideRecord{SlideNumber: 2, Title: "Two", Text: "- c", ImageDescription: "a blue whale", IsValid: true}
	if res.Deck[1] != want {
		t.Errorf("slide 2 = %+v, want %+v", res.Deck[1], want)
	}
	if res.CountMismatch() {
		t.Error("unexpected count mismatch")
	}
	if len(res.Warnings()) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings())
	}
}

func TestParse_SingleSlideIsOneElementDeck(t *testing.T) {
	single, err := Parse("<slides>"+slideXML("Only", "body", "desc")+"</slides>", 1)
	if err != nil {
		t.Fatal(err)
	}
	multi, err := Parse("<slides>"+slideXML("Only", "body", "desc")+slideXML("Second", "body", "desc")+"</slides>", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(single.Deck) != 1 {
		t.Fatalf("single deck len = %d, want 1", len(single.Deck))
	}
	if single.Deck[0] != multi.Deck[0] {
		t.Fatalf("single slide parsed differently: %+v vs %+v", single.Deck[0], multi.Deck[0])
	}
}

func TestParse_CaseInsensitiveTags(t *testing.T) {
	doc := `<SLIDES><Slide><TITLE>T</TITLE><Text>x</Text><ImageDescription>d</ImageDescription></Slide></SLIDES>`
	res, err := Parse(doc, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Deck[0].IsValid || res.Deck[0].Title != "T" || res.Deck[0].ImageDescription != "d" {
		t.Fatalf("unexpected record: %+v", res.Deck[0])
	}
}

func TestParse_SnakeCaseDescription(t *testing.T) {
	doc := `<slides><slide><title>T</title><text>x</text><image_description>d</image_description></slide></slides>`
	res, err := Parse(doc, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Deck[0].ImageDescription != "d" {
		t.Fatalf("image description = %q", res.Deck[0].ImageDescription)
	}
}

func TestParse_NumbersFollowPosition(t *testing.T) {
	doc := `<slides>
	<slide number="7"><slideNumber>7</slideNumber><title>A</title><text>a</text><imageDescription>a</imageDescription></slide>
	<slide number="3"><title>B</title><text>b</text><imageDescription>b</imageDescription></slide>
	</slides>`
	res, err := Parse(doc, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range res.Deck {
		if s.SlideNumber != i+1 {
			t.Errorf("slide at %d numbered %d", i, s.SlideNumber)
		}
	}
}

func TestParse_InvalidSlidesRetained(t *testing.T) {
	doc := "<slides>" +
		slideXML("A", "", "x") +
		slideXML("B", "body", "   ") +
		"<slide><title>C</title><text>body</text></slide>" +
		slideXML("D", "body", "y") +
		"</slides>"
	res, err := Parse(doc, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Deck) != 4 {
		t.Fatalf("deck len = %d, want 4 (invalid slides must be kept)", len(res.Deck))
	}
	wantValid := []bool{false, false, false, true}
	for i, s := range res.Deck {
		if s.IsValid != wantValid[i] {
			t.Errorf("slide %d valid = %v, want %v", s.SlideNumber, s.IsValid, wantValid[i])
		}
	}
	if len(res.Invalid) != 3 {
		t.Fatalf("invalid warnings = %d, want 3", len(res.Invalid))
	}
	if res.Invalid[0].SlideNumber != 1 || res.Invalid[0].Missing[0] != "text" {
		t.Errorf("first warning = %+v", res.Invalid[0])
	}
	if res.Invalid[2].Missing[0] != "imageDescription" {
		t.Errorf("third warning = %+v", res.Invalid[2])
	}
}

func TestParse_CountMismatchIsWarningOnly(t *testing.T) {
	doc := "<slides>" + slideXML("A", "a", "a") + slideXML("B", "b", "b") + "</slides>"
	res, err := Parse(doc, 10)
	if err != nil {
		t.Fatalf("count mismatch must not fail: %v", err)
	}
	if !res.CountMismatch() {
		t.Fatal("expected count mismatch")
	}
	warnings := res.Warnings()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "expected 10 slides") {
		t.Fatalf("warnings = %v", warnings)
	}
}

func TestParse_TopLevelSlidesWithoutWrapper(t *testing.T) {
	doc := slideXML("A", "a", "a") + slideXML("B", "b", "b")
	res, err := Parse(doc, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Deck) != 2 {
		t.Fatalf("deck len = %d, want 2", len(res.Deck))
	}
}

func TestParse_NestedMarkupFlattened(t *testing.T) {
	doc := `<slides><slide><title>A</title><text><li>first</li><li>second</li></text><imageDescription>d</imageDescription></slide></slides>`
	res, err := Parse(doc, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Deck[0].Text != "first\nsecond" {
		t.Fatalf("text = %q", res.Deck[0].Text)
	}
}

func TestParse_EscapedEntitiesDecoded(t *testing.T) {
	doc := "<slides>" + slideXML("R&amp;D", "a &lt; b", "Q&amp;A") + "</slides>"
	res, err := Parse(doc, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Deck[0].Title != "R&D" || res.Deck[0].Text != "a < b" {
		t.Fatalf("unexpected decoding: %+v", res.Deck[0])
	}
}

func TestParse_NoSlideElements(t *testing.T) {
	for _, doc := range []string{"<slides></slides>", "<slides><note>none</note></slides>", "<other/>"} {
		_, err := Parse(doc, 10)
		var se *StructureError
		if !errors.As(err, &se) {
			t.Fatalf("Parse(%q): expected StructureError, got %v", doc, err)
		}
		if !errors.Is(err, ErrNoSlides) {
			t.Fatalf("Parse(%q): expected ErrNoSlides, got %v", doc, err)
		}
	}
}

func TestParse_MalformedXML(t *testing.T) {
	for _, doc := range []string{"<slides><slide><title>x</slide></slides>", "<slides><slide>", "<slides>&bogus;</slides>"} {
		_, err := Parse(doc, 1)
		if !errors.Is(err, ErrMalformedXML) {
			t.Fatalf("Parse(%q): expected ErrMalformedXML, got %v", doc, err)
		}
		var se *StructureError
		if !errors.As(err, &se) {
			t.Fatalf("expected StructureError, got %T", err)
		}
	}
}

func TestValidate_ReappliesPredicate(t *testing.T) {
	deck := types.Deck{
		{SlideNumber: 4, Title: "A", Text: "", ImageDescription: "x", IsValid: true},
		{SlideNumber: 9, Title: "B", Text: "b", ImageDescription: "y", IsValid: false},
		{SlideNumber: 1, Title: " ", Text: "c", ImageDescription: "z", IsValid: true},
	}
	out, invalid := Validate(deck)
	if out[0].IsValid || !out[1].IsValid || out[2].IsValid {
		t.Fatalf("validity not recomputed: %+v", out)
	}
	for i, s := range out {
		if s.SlideNumber != i+1 {
			t.Errorf("slide %d renumbered to %d", i, s.SlideNumber)
		}
	}
	if len(invalid) != 2 {
		t.Fatalf("invalid = %d, want 2", len(invalid))
	}
	if deck[0].IsValid != true || deck[0].SlideNumber != 4 {
		t.Error("Validate must not mutate its input")
	}
}

func TestSlideValidationWarning_String(t *testing.T) {
	w := SlideValidationWarning{SlideNumber: 3, Missing: []string{"title", "text"}}
	if got := w.String(); got != "slide 3 is invalid: missing title, text" {
		t.Fatalf("String() = %q", got)
	}
}
