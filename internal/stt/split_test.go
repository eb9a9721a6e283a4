package stt

import (
	"reflect"
	"strings"
	"testing"
)

var defaultMarks = []string{".", "?", "!"}

func TestSplitAtPunctuationBoundaries(t *testing.T) {
	got := Split("안녕하세요. 반가워요!", defaultMarks)
	want := []string{"안녕하세요.", "반가워요!"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split = %v, want %v", got, want)
	}
}

func TestSplitWithoutMarksKeepsSentence(t *testing.T) {
	got := Split("  오늘 날씨가 좋네요  ", defaultMarks)
	want := []string{"오늘 날씨가 좋네요"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split = %v, want %v", got, want)
	}
}

func TestSplitMultipleClauses(t *testing.T) {
	got := Split("뭐 했어? 밥 먹었어. 진짜!", defaultMarks)
	want := []string{"뭐 했어?", "밥 먹었어.", "진짜!"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split = %v, want %v", got, want)
	}
}

func TestSplitTrailingClauseEmitted(t *testing.T) {
	got := Split("그랬구나. 그래서 어떻게 됐어", defaultMarks)
	want := []string{"그랬구나.", "그래서 어떻게 됐어"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split = %v, want %v", got, want)
	}
}

// Concatenating all fragments with single spaces must reproduce the original
// text modulo collapsed whitespace: splitting may never lose or invent words.
func TestSplitIsCoveragePreserving(t *testing.T) {
	texts := []string{
		"안녕하세요. 반가워요!",
		"하나 둘 셋",
		"  gap   between.words here?  and   more ",
		"마침표로 끝나요.",
		"no marks at all",
	}
	for _, text := range texts {
		fragments := Split(text, defaultMarks)
		got := strings.Join(fragments, " ")
		want := strings.Join(strings.Fields(text), " ")
		if got != want {
			t.Errorf("Split(%q) not coverage-preserving:\ngot  %q\nwant %q", text, got, want)
		}
	}
}

func TestExplodeCopiesEveryOtherField(t *testing.T) {
	src := Segment{
		Start:      1000,
		End:        4000,
		Text:       "안녕하세요 반가워요",
		TextEdited: "안녕하세요. 반가워요!",
		Confidence: 0.93,
		Speaker:    "1",
	}
	out := Explode([]Segment{src}, defaultMarks)
	if len(out) != 2 {
		t.Fatalf("got %d rows, want 2", len(out))
	}
	if out[0].TextEdited != "안녕하세요." || out[1].TextEdited != "반가워요!" {
		t.Errorf("fragments = %q, %q", out[0].TextEdited, out[1].TextEdited)
	}
	for i, row := range out {
		// timing stays that of the source row: approximate by design
		if row.Start != src.Start || row.End != src.End ||
			row.Text != src.Text || row.Confidence != src.Confidence || row.Speaker != src.Speaker {
			t.Errorf("row %d did not copy source fields: %+v", i, row)
		}
	}
}

func TestExplodeKeepsBlankRow(t *testing.T) {
	out := Explode([]Segment{{TextEdited: ""}}, defaultMarks)
	if len(out) != 1 {
		t.Errorf("got %d rows, want 1", len(out))
	}
}
