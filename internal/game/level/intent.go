package level

import "regexp"

// Intent is what the text-intent detector found in a body of player speech.
type Intent struct {
	// Threat is true when the text contains violent or coercive language.
	Threat bool

	// Affection is true when the text contains affectionate language
	// (praise, petting, endearments).
	Affection bool
}

// Classifier detects player intent from transcript text. The engine feeds
// it either the current line or the cumulative session corpus depending on
// the rule being evaluated.
type Classifier interface {
	Classify(text string) Intent
}

// RegexClassifier is the default Classifier: two fixed pattern sets run
// case-insensitively over the text. It is stateless and safe for
// concurrent use.
type RegexClassifier struct {
	threat    []*regexp.Regexp
	affection []*regexp.Regexp
}

var _ Classifier = (*RegexClassifier)(nil)

// NewRegexClassifier builds the default intent detector.
func NewRegexClassifier() *RegexClassifier {
	return &RegexClassifier{
		threat: compileAll(
			`\bkill\b`,
			`\bhurt\b`,
			`\bsmash\b`,
			`\bdestroy\b`,
			`\bbreak your\b`,
			`\bblow (?:up|it up)\b`,
			`\bburn\b`,
			`\bshoot\b`,
			`\bbeat\b`,
			`\bor else\b`,
			`\byou'?ll regret\b`,
			`\bmake you pay\b`,
			`\bput you down\b`,
			`\bshut (?:up|your)\b`,
			`\bstupid (?:dog|mutt|animal)\b`,
		),
		affection: compileAll(
			`\bgood boy\b`,
			`\bgood dog\b`,
			`\bwho'?s a good\b`,
			`\bpet(?:ting)?\b`,
			`\bscratch\b`,
			`\bbelly rub\b`,
			`\btreats?\b`,
			`\bcuddle\b`,
			`\bsweet(?:ie|heart)?\b`,
			`\bbuddy\b`,
			`\bpal\b`,
			`\blove you\b`,
			`\bsuch a good\b`,
			`\bbrave (?:boy|dog)\b`,
			`\bgentle\b`,
		),
	}
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

// Classify implements Classifier.
func (c *RegexClassifier) Classify(text string) Intent {
	var in Intent
	for _, re := range c.threat {
		if re.MatchString(text) {
			in.Threat = true
			break
		}
	}
	for _, re := range c.affection {
		if re.MatchString(text) {
			in.Affection = true
			break
		}
	}
	return in
}
