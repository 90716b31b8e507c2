// Package intent scores free-text chat input against declared intent phrases
package intent

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// DefaultThreshold is the minimum score for a phrase to count as detected
const DefaultThreshold = 0.6

// Candidate is an intent phrase a component reacts to
type Candidate struct {
	Key      string   // Component id or intent name
	Phrase   string   // Primary phrase ("show validation errors")
	Synonyms []string // Lower-weight alternatives
}

// Match is a candidate scored against the input text
type Match struct {
	Key        string  `json:"key"`
	Phrase     string  `json:"phrase"`
	Score      float64 `json:"score"`
	Highlights []int   `json:"highlights,omitempty"` // Byte offsets of matched input characters
}

// Rank scores every candidate against text and returns those at or above threshold,
// best first. Ties keep candidate order.
func Rank(text string, candidates []Candidate, threshold float64) []Match {
	input := strings.ToLower(strings.TrimSpace(text))
	if input == "" {
		return nil
	}

	var matches []Match
	for _, c := range candidates {
		score, phrase, highlights := scoreCandidate(input, c)
		if score >= threshold {
			matches = append(matches, Match{
				Key:        c.Key,
				Phrase:     phrase,
				Score:      score,
				Highlights: highlights,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// Score returns how well text expresses phrase, in 0..1
func Score(text, phrase string) float64 {
	input := strings.ToLower(strings.TrimSpace(text))
	if input == "" {
		return 0
	}
	score, _ := scorePhrase(input, phrase)
	return score
}

// scoreCandidate returns the best score among the phrase and its synonyms,
// with the phrase that produced it
func scoreCandidate(input string, c Candidate) (float64, string, []int) {
	best, highlights := scorePhrase(input, c.Phrase)
	phrase := c.Phrase
	for _, syn := range c.Synonyms {
		// Synonyms count for a little less than the primary phrase
		s, h := scorePhrase(input, syn)
		s *= 0.9
		if s > best {
			best, phrase, highlights = s, syn, h
		}
	}
	return best, phrase, highlights
}

// scorePhrase averages per-token scores of the phrase found in the input.
// Every phrase token has to appear somehow for a full score.
func scorePhrase(input, phrase string) (float64, []int) {
	tokens := tokenize(phrase)
	if len(tokens) == 0 {
		return 0, nil
	}

	var total float64
	var highlights []int
	matched := 0

	for _, token := range tokens {
		s, h := scoreToken(token, input)
		if s > 0 {
			matched++
			total += s
			highlights = append(highlights, h...)
		}
	}

	if matched < len(tokens) {
		total *= float64(matched) / float64(len(tokens)) * 0.5
	}
	return total / float64(len(tokens)), highlights
}

// tokenize splits on anything that is not a letter or digit
func tokenize(s string) []string {
	s = strings.ToLower(s)
	var tokens []string
	var current strings.Builder

	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
		} else if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func scoreToken(token, text string) (float64, []int) {
	if idx := wordIndex(text, token); idx >= 0 {
		return 1.0, spanAt(idx, len(token))
	}
	if idx := strings.Index(text, token); idx >= 0 {
		return 0.7, spanAt(idx, len(token))
	}
	if idx, n, ok := closeWord(text, token); ok {
		return 0.55, spanAt(idx, n)
	}
	if fuzzyContains(text, token) {
		return 0.4, nil
	}
	return 0, nil
}

// spanAt lists the byte offsets [idx, idx+n)
func spanAt(idx, n int) []int {
	out := make([]int, 0, n)
	for i := idx; i < idx+n; i++ {
		out = append(out, i)
	}
	return out
}

// wordIndex returns the offset of the first occurrence of word at word boundaries, or -1
func wordIndex(text, word string) int {
	for start := 0; start < len(text); {
		idx := strings.Index(text[start:], word)
		if idx == -1 {
			return -1
		}
		idx += start
		end := idx + len(word)
		before := idx == 0 || !isWordByte(text[idx-1])
		after := end >= len(text) || !isWordByte(text[end])
		if before && after {
			return idx
		}
		start = idx + 1
	}
	return -1
}

func isWordByte(b byte) bool {
	r := rune(b)
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// typoSimilarity is the minimum 1 - distance/length for a word to count as a misspelling
const typoSimilarity = 0.75

// closeWord finds a word in text within a few edits of token ("valdation" for "validation").
// It returns the word's offset and length.
func closeWord(text, token string) (int, int, bool) {
	if len(token) < 4 {
		return 0, 0, false
	}
	for start := 0; start < len(text); {
		for start < len(text) && !isWordByte(text[start]) {
			start++
		}
		end := start
		for end < len(text) && isWordByte(text[end]) {
			end++
		}
		if end == start {
			break
		}
		word := text[start:end]
		longest := len(word)
		if len(token) > longest {
			longest = len(token)
		}
		if 1-float64(levenshtein.ComputeDistance(word, token))/float64(longest) >= typoSimilarity {
			return start, end - start, true
		}
		start = end
	}
	return 0, 0, false
}

// fuzzyContains checks the pattern characters appear in order with bounded gaps,
// which tolerates dropped letters like "vldtn"
func fuzzyContains(text, pattern string) bool {
	if len(pattern) == 0 {
		return true
	}
	if len(text) == 0 {
		return false
	}

	patternIdx := 0
	gaps := 0
	maxGaps := len(pattern)

	for i := 0; i < len(text) && patternIdx < len(pattern); i++ {
		if text[i] == pattern[patternIdx] {
			patternIdx++
			gaps = 0
		} else if patternIdx > 0 {
			gaps++
			if gaps > maxGaps {
				return false
			}
		}
	}
	return patternIdx == len(pattern)
}
