package question

import (
	"regexp"
	"strings"
)

// Parsed is one question block recovered from a bulk upload file.
type Parsed struct {
	Text          string
	Options       []string
	CorrectOption int
	Explanation   string
}

var (
	questionLine = regexp.MustCompile(`^\d+\.\s`)
	optionLine   = regexp.MustCompile(`^[A-Z]\.\s`)
	answerLine   = regexp.MustCompile(`(?i)^Ans:\s*`)
	explainLine  = regexp.MustCompile(`(?i)^Explain:\s*`)
)

// Parse consumes the plaintext upload format and returns the valid question
// blocks in file order. The parser is best effort: a block missing its
// question text, holding fewer than two options, or without a resolvable
// Ans: line is dropped silently, never reported as an error.
//
// Grammar, one construct per trimmed line:
//
//	1. question text     starts a block (numbering prefix discarded)
//	A. option text       appends an option (letter discarded, append order)
//	Ans: B               correct option, first letter mapped A=0, B=1, ...
//	Explain: text        optional explanation
//	<blank>              flushes the block
func Parse(text string) []Parsed {
	var (
		out     []Parsed
		qText   string
		options []string
		correct = -1
		explain string
	)

	flush := func() {
		if qText != "" && len(options) >= 2 && correct >= 0 {
			out = append(out, Parsed{
				Text:          qText,
				Options:       options,
				CorrectOption: correct,
				Explanation:   explain,
			})
		}
		qText = ""
		options = nil
		correct = -1
		explain = ""
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)

		switch {
		case line == "":
			flush()
		case questionLine.MatchString(line):
			flush()
			qText = strings.TrimSpace(questionLine.ReplaceAllString(line, ""))
		case optionLine.MatchString(line):
			options = append(options, strings.TrimSpace(optionLine.ReplaceAllString(line, "")))
		case answerLine.MatchString(line):
			answer := strings.ToUpper(strings.TrimSpace(answerLine.ReplaceAllString(line, "")))
			if answer != "" {
				idx := int(answer[0]) - 'A'
				if idx >= 0 && idx < len(options) {
					correct = idx
				}
			}
		case explainLine.MatchString(line):
			explain = strings.TrimSpace(explainLine.ReplaceAllString(line, ""))
		}
	}
	flush()

	return out
}
