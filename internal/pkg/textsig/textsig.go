// Package textsig holds the low-level text helpers shared by the moderation
// classifiers: tokenization, token-set similarity, URL detection and content
// fingerprints.
package textsig

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/spaolacci/murmur3"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonTokenChars = regexp.MustCompile(`[^\pL\pN\s']+`)
	urlPattern    = regexp.MustCompile(`https?://\S+`)
)

// Tokenize splits free-form text into lower-case tokens with diacritics folded
// away, so "Café!!" and "cafe" produce the same token.
func Tokenize(text string) []string {
	// transformer chains are stateful; build one per call
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	bare := strings.ToLower(nonTokenChars.ReplaceAllString(text, " "))
	folded, _, err := transform.String(fold, bare)
	if err != nil {
		log.Warn().Err(err).Msg("unicode normalization error")
		folded = bare
	}
	return strings.Fields(folded)
}

// TokenSet returns the distinct tokens of text.
func TokenSet(text string) map[string]struct{} {
	tokens := Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// Jaccard returns |a∩b| / |a∪b| of two token sets. Two empty sets have
// similarity 0; empty submissions are never treated as duplicates.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// ContainsURL reports whether text has an http(s) link.
func ContainsURL(text string) bool {
	return urlPattern.MatchString(text)
}

// ExtractURLs returns every http(s) link in text.
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// Fingerprint returns a fast, compact hash of the normalized token stream.
// Reformatting or re-casing a message does not change its fingerprint.
func Fingerprint(text string) string {
	val := murmur3.Sum64([]byte(strings.Join(Tokenize(text), " ")))
	return fmt.Sprintf("%016x", val)
}

// Truncate cuts s to at most max runes without splitting a multi-byte rune.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
