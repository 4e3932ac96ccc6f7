package moderation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Expression classifications
const (
	ExpressionNeutral    = "neutral"
	ExpressionExpressive = "expressive"
	ExpressionSymbolic   = "symbolic"
)

// ExpressionOutput is the Layer 1 result. It is recorded for audit and never
// drives a decision.
type ExpressionOutput struct {
	ExpressiveRatio   float64  `json:"expressive_ratio"`
	RealWordRatio     float64  `json:"real_word_ratio"`
	FormattingSignals []string `json:"formatting_signals"`
	Classification    string   `json:"classification"`
}

var (
	reRepeatedExclamation = regexp.MustCompile(`!{2,}`)
	reRepeatedQuestion    = regexp.MustCompile(`\?{2,}`)
	reUppercaseRun        = regexp.MustCompile(`\p{Lu}{5,}`)
)

// ClassifyExpression scores the stylistic shape of text
func ClassifyExpression(text string) ExpressionOutput {
	out := ExpressionOutput{
		FormattingSignals: []string{},
		Classification:    ExpressionNeutral,
	}
	length := utf8.RuneCountInString(text)
	if strings.TrimSpace(text) == "" {
		return out
	}

	out.ExpressiveRatio = float64(emphaticRuns(text)) / float64(length)
	out.RealWordRatio = realWordRatio(text)

	if reRepeatedExclamation.MatchString(text) {
		out.FormattingSignals = append(out.FormattingSignals, "repeated_exclamation")
	}
	if reRepeatedQuestion.MatchString(text) {
		out.FormattingSignals = append(out.FormattingSignals, "repeated_question")
	}
	if reUppercaseRun.MatchString(text) {
		out.FormattingSignals = append(out.FormattingSignals, "uppercase_run")
	}
	if countEmoji(text) > 3 {
		out.FormattingSignals = append(out.FormattingSignals, "emoji_heavy")
	}
	if longestRepeat(text) >= 5 {
		out.FormattingSignals = append(out.FormattingSignals, "repeated_characters")
	}

	switch {
	case out.ExpressiveRatio > 0.10 || len(out.FormattingSignals) > 2:
		out.Classification = ExpressionExpressive
	case out.RealWordRatio < 0.30:
		out.Classification = ExpressionSymbolic
	}
	return out
}

// emphaticRuns counts maximal runs of emoji, and runs of ! / ? that contain
// an exclamation mark or are at least two characters long
func emphaticRuns(text string) int {
	runs := 0
	var (
		punctLen  int
		punctBang bool
		inEmoji   bool
	)
	flushPunct := func() {
		if punctLen > 0 && (punctBang || punctLen >= 2) {
			runs++
		}
		punctLen, punctBang = 0, false
	}
	for _, r := range text {
		switch {
		case r == '!' || r == '?':
			inEmoji = false
			punctLen++
			if r == '!' {
				punctBang = true
			}
		case isEmoji(r):
			flushPunct()
			if !inEmoji {
				runs++
				inEmoji = true
			}
		case r == '\uFE0F' || r == '\u200D':
			// variation selector / zero-width joiner continue an emoji run
		default:
			flushPunct()
			inEmoji = false
		}
	}
	flushPunct()
	return runs
}

func realWordRatio(text string) float64 {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return 0
	}
	words := 0
	for _, tok := range tokens {
		tok = strings.TrimFunc(tok, func(r rune) bool { return !unicode.IsLetter(r) })
		if utf8.RuneCountInString(tok) < 3 {
			continue
		}
		alpha := true
		for _, r := range tok {
			if !unicode.IsLetter(r) {
				alpha = false
				break
			}
		}
		if alpha {
			words++
		}
	}
	return float64(words) / float64(len(tokens))
}

func countEmoji(text string) int {
	n := 0
	for _, r := range text {
		if isEmoji(r) {
			n++
		}
	}
	return n
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF:
		return true
	case r >= 0x1F000 && r <= 0x1F2FF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	}
	return false
}

// longestRepeat is the longest run of one identical non-space rune
func longestRepeat(text string) int {
	best, cur := 0, 0
	var prev rune = -1
	for _, r := range text {
		if r == prev && !unicode.IsSpace(r) {
			cur++
		} else {
			cur = 1
		}
		prev = r
		if cur > best && !unicode.IsSpace(r) {
			best = cur
		}
	}
	return best
}
