// Package skills holds the single skill-name table shared by every part of the
// engine: canonical keys, subject assignment, and quest/event matching.
package skills

import (
	"strings"
	"unicode"
)

// Subject is the broad section a skill belongs to.
type Subject string

const (
	SubjectMath   Subject = "math"
	SubjectVerbal Subject = "verbal"
)

// AllSubjects returns all subjects in display order.
func AllSubjects() []Subject {
	return []Subject{SubjectMath, SubjectVerbal}
}

// DisplayName returns a human-readable label for the subject.
func (s Subject) DisplayName() string {
	switch s {
	case SubjectMath:
		return "Math"
	case SubjectVerbal:
		return "Verbal"
	default:
		return string(s)
	}
}

// ParseSubject maps a free-form subject label to a Subject.
func ParseSubject(s string) (Subject, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "math", "maths", "quant", "quantitative":
		return SubjectMath, true
	case "verbal", "english", "reading", "writing":
		return SubjectVerbal, true
	}
	return "", false
}

// orderedReplacements run before slugging. Order matters: longer forms first.
var orderedReplacements = []struct {
	old string
	new string
}{
	{"&", " and "},
	{"+", " plus "},
	{"%", " percent "},
	{"'s", ""},
}

// aliases maps common shorthand keys onto the canonical key.
var aliases = map[string]string{
	"vocab":                 "vocabulary",
	"rc":                    "reading-comprehension",
	"reading-comp":          "reading-comprehension",
	"sc":                    "sentence-completion",
	"tc":                    "text-completion",
	"cr":                    "critical-reasoning",
	"geo":                   "geometry",
	"arith":                 "arithmetic",
	"algebraic-expressions": "algebra",
	"stats":                 "statistics",
	"prob":                  "probability",
	"percentages":           "percent",
	"percents":              "percent",
	"fraction":              "fractions",
	"ratio":                 "ratios",
}

// Key returns the canonical slug for a skill label. Labels that differ only
// in case, spacing, or punctuation share a key.
func Key(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return ""
	}
	for _, rep := range orderedReplacements {
		key = strings.ReplaceAll(key, rep.old, rep.new)
	}

	var b strings.Builder
	dash := false
	for _, r := range key {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	key = strings.TrimSuffix(b.String(), "-")

	if canon, ok := aliases[key]; ok {
		return canon
	}
	return key
}

// subjectKeywords is scanned in order; the first keyword whose tokens appear
// as a contiguous run in the skill key decides the subject.
var subjectKeywords = []struct {
	keyword string
	subject Subject
}{
	{"reading-comprehension", SubjectVerbal},
	{"critical-reasoning", SubjectVerbal},
	{"sentence-completion", SubjectVerbal},
	{"sentence-equivalence", SubjectVerbal},
	{"text-completion", SubjectVerbal},
	{"data-interpretation", SubjectMath},
	{"word-problems", SubjectMath},
	{"vocabulary", SubjectVerbal},
	{"grammar", SubjectVerbal},
	{"reading", SubjectVerbal},
	{"verbal", SubjectVerbal},
	{"analogies", SubjectVerbal},
	{"synonyms", SubjectVerbal},
	{"antonyms", SubjectVerbal},
	{"writing", SubjectVerbal},
	{"essay", SubjectVerbal},
	{"punctuation", SubjectVerbal},
	{"rhetoric", SubjectVerbal},
	{"passage", SubjectVerbal},
	{"algebra", SubjectMath},
	{"arithmetic", SubjectMath},
	{"geometry", SubjectMath},
	{"fractions", SubjectMath},
	{"decimals", SubjectMath},
	{"percent", SubjectMath},
	{"ratios", SubjectMath},
	{"probability", SubjectMath},
	{"statistics", SubjectMath},
	{"equations", SubjectMath},
	{"inequalities", SubjectMath},
	{"integers", SubjectMath},
	{"exponents", SubjectMath},
	{"functions", SubjectMath},
	{"trigonometry", SubjectMath},
	{"coordinate", SubjectMath},
	{"number", SubjectMath},
	{"quant", SubjectMath},
	{"math", SubjectMath},
}

// SubjectFor assigns a subject to a skill label using the keyword table.
// Labels with no recognised keyword default to math.
func SubjectFor(name string) Subject {
	toks := tokens(Key(name))
	for _, kw := range subjectKeywords {
		if containsRun(toks, strings.Split(kw.keyword, "-")) {
			return kw.subject
		}
	}
	return SubjectMath
}

// Match reports whether an event's skill label counts toward a quest that
// targets target. Keys must be equal, or one key's tokens must appear as a
// contiguous run inside the other's ("algebra" matches "linear-algebra").
func Match(target, skill string) bool {
	tk, sk := Key(target), Key(skill)
	if tk == "" || sk == "" {
		return false
	}
	if tk == sk {
		return true
	}
	tt, st := tokens(tk), tokens(sk)
	return containsRun(st, tt) || containsRun(tt, st)
}

func tokens(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, "-")
}

// containsRun reports whether needle occurs as a contiguous run in hay.
// A trailing "s" is ignored so singular and plural forms line up.
func containsRun(hay, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(hay) {
		return false
	}
	for i := 0; i+len(needle) <= len(hay); i++ {
		ok := true
		for j := range needle {
			if hay[i+j] != needle[j] && hay[i+j] != needle[j]+"s" && hay[i+j]+"s" != needle[j] {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}
