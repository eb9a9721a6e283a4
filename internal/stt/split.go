package stt

import "strings"

// Split subdivides text into clause-level fragments at the given punctuation
// marks, processed one mark at a time. The scan walks word by word; a word
// containing the current mark closes the running clause. Words inside a
// fragment are rejoined with single spaces, so surrounding whitespace
// collapses but no word is lost.
func Split(text string, marks []string) []string {
	fragments := []string{text}
	for _, mark := range marks {
		var next []string
		for _, fragment := range fragments {
			next = append(next, splitOnMark(fragment, mark)...)
		}
		fragments = next
	}
	return fragments
}

func splitOnMark(sentence, mark string) []string {
	sentence = strings.TrimSpace(sentence)
	if sentence == "" {
		return nil
	}
	if !strings.Contains(sentence, mark) {
		return []string{sentence}
	}
	var out []string
	var clause []string
	for _, word := range strings.Fields(sentence) {
		clause = append(clause, word)
		if strings.Contains(word, mark) {
			out = append(out, strings.Join(clause, " "))
			clause = clause[:0]
		}
	}
	if len(clause) > 0 {
		out = append(out, strings.Join(clause, " "))
	}
	return out
}

// Explode expands each segment into one segment per clause fragment of its
// editable text. Every other field is copied unchanged, so timing on split
// rows is approximate: all fragments keep the source row's start and end.
func Explode(segments []Segment, marks []string) []Segment {
	var out []Segment
	for _, seg := range segments {
		fragments := Split(seg.TextEdited, marks)
		if len(fragments) == 0 {
			// blank text still occupies one transcript row
			out = append(out, seg)
			continue
		}
		for _, fragment := range fragments {
			row := seg
			row.TextEdited = fragment
			out = append(out, row)
		}
	}
	return out
}
