package chatbot

import (
	"strings"
	"unicode"
)

// Scope says which data slice a question should be answered from
type Scope string

const (
	ScopePersonal Scope = "personal"
	ScopeGlobal   Scope = "global"
)

// Rule is one classifier pattern. Matching is case-insensitive; with
// WordBoundary set the pattern only matches when not embedded inside a
// longer word, avoiding incidental substring hits.
type Rule struct {
	Pattern      string
	WordBoundary bool
}

// Classifier decides whether a question is about the requester's own
// data or the whole platform. It is deliberately conservative toward
// false positives: narrowing context is safer than leaking platform-wide
// aggregates into a personal answer.
type Classifier struct {
	rules []Rule
}

// DefaultRules reproduces the curated Portuguese possessive and
// first-person pattern list. Multi-word patterns keep plain substring
// semantics; single words match on word boundaries.
func DefaultRules() []Rule {
	words := []string{
		// possessive pronouns
		"meu", "meus", "minha", "minhas",
		// first-person verbs
		"tenho", "fiz", "criei", "visitei", "resolvi", "fui",
	}
	phrases := []string{
		"eu tenho", "eu fiz", "quantos tenho", "quantas tenho",
		"os meus", "as minhas", "das minhas", "dos meus",
		"para mim", "sobre mim", "de mim",
		"quantos pendentes tenho",
		"quantos relatórios fiz",
		"quais são os meus",
		"quais as minhas",
		"minhas lojas",
		"meus pendentes",
		"meus relatórios",
		"meus alertas",
		"minhas visitas",
		"minhas tarefas",
		"meu desempenho",
		"minha performance",
		"que me pertencem",
		"que são meus",
		"que são minhas",
		"atribuídos a mim",
		"atribuídas a mim",
		"associados a mim",
		"associadas a mim",
	}

	rules := make([]Rule, 0, len(words)+len(phrases))
	for _, w := range words {
		rules = append(rules, Rule{Pattern: w, WordBoundary: true})
	}
	for _, p := range phrases {
		rules = append(rules, Rule{Pattern: p})
	}
	return rules
}

func NewClassifier(rules []Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// IsPersonalQuery reports whether the question should be answered from
// the requester's own data slice. Pure function, no I/O.
func (c *Classifier) IsPersonalQuery(text string) bool {
	lower := strings.ToLower(text)

	for _, rule := range c.rules {
		pattern := strings.ToLower(rule.Pattern)
		if rule.WordBoundary {
			if containsWord(lower, pattern) {
				return true
			}
		} else if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// Classify maps a question to its scope
func (c *Classifier) Classify(text string) Scope {
	if c.IsPersonalQuery(text) {
		return ScopePersonal
	}
	return ScopeGlobal
}

// containsWord reports whether pattern occurs in s delimited by
// non-letter, non-digit runes on both sides.
func containsWord(s, pattern string) bool {
	for offset := 0; ; {
		idx := strings.Index(s[offset:], pattern)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(pattern)

		if boundaryBefore(s, start) && boundaryAfter(s, end) {
			return true
		}
		offset = start + 1
		if offset >= len(s) {
			return false
		}
	}
}

func boundaryBefore(s string, idx int) bool {
	if idx == 0 {
		return true
	}
	r := lastRune(s[:idx])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(s string, idx int) bool {
	if idx >= len(s) {
		return true
	}
	r := firstRune(s[idx:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func lastRune(s string) rune {
	var last rune
	for _, r := range s {
		last = r
	}
	return last
}
