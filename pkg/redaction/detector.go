package redaction

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// SensitiveDataType classifies a detected sensitive value.
type SensitiveDataType string

const (
	TypeSSN           SensitiveDataType = "ssn"
	TypeCreditCard    SensitiveDataType = "credit_card"
	TypePhoneNumber   SensitiveDataType = "phone_number"
	TypeEmail         SensitiveDataType = "email"
	TypeDateOfBirth   SensitiveDataType = "date_of_birth"
	TypeMedicalRecord SensitiveDataType = "medical_record"
	TypeAccountNumber SensitiveDataType = "account_number"
	TypeIPAddress     SensitiveDataType = "ip_address"
	TypePassport      SensitiveDataType = "passport"
	TypeDriverLicense SensitiveDataType = "driver_license"
)

// Span is one detected sensitive region within a text.
type Span struct {
	Type       SensitiveDataType
	Offset     int
	Length     int
	Confidence float64
}

// End returns the exclusive end offset of the span.
func (s Span) End() int { return s.Offset + s.Length }

// sensitivePatterns is the built-in category pattern table. Patterns
// are deterministic; detection never calls out to a model.
var sensitivePatterns = map[SensitiveDataType]*regexp.Regexp{
	TypeSSN:           regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	TypeCreditCard:    regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`),
	TypePhoneNumber:   regexp.MustCompile(`\b(?:\+?1[-. ]?)?\(?\d{3}\)?[-. ]\d{3}[-. ]?\d{4}\b`),
	TypeEmail:         regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
	TypeDateOfBirth:   regexp.MustCompile(`\b(?:0?[1-9]|1[0-2])[/\-](?:0?[1-9]|[12]\d|3[01])[/\-](?:19|20)\d{2}\b`),
	TypeMedicalRecord: regexp.MustCompile(`\b(?i:MRN)[:#\s]*\d{6,10}\b`),
	TypeAccountNumber: regexp.MustCompile(`\b(?i:acct|account)[:#\s]*\d{6,14}\b`),
	TypeIPAddress:     regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
	TypePassport:      regexp.MustCompile(`\b[A-Z]{1,2}\d{7,9}\b`),
	TypeDriverLicense: regexp.MustCompile(`\b[A-Z]\d{7,12}\b`),
}

// contextKeywords maps each category to the label words that trigger
// the context-window heuristic for unformatted values.
var contextKeywords = map[SensitiveDataType][]string{
	TypeSSN:           {"ssn", "social", "security"},
	TypeCreditCard:    {"card", "credit", "visa", "mastercard", "amex", "cvv"},
	TypePhoneNumber:   {"phone", "tel", "mobile", "cell", "fax"},
	TypeEmail:         {"email", "e-mail", "mail"},
	TypeDateOfBirth:   {"dob", "birth", "birthday", "born"},
	TypeMedicalRecord: {"mrn", "medical", "patient", "chart"},
	TypeAccountNumber: {"account", "acct", "iban", "routing"},
	TypePassport:      {"passport"},
	TypeDriverLicense: {"license", "licence", "dl"},
}

// patternConfidence is assigned to direct pattern matches;
// contextConfidence to context-window heuristic matches.
const (
	patternConfidence = 0.95
	contextConfidence = 0.6
)

// contextWindow is how many neighboring tokens are scanned for a
// category keyword on either side of a data-shaped token.
const contextWindow = 3

// Detector finds sensitive data spans in text.
type Detector struct {
	patterns map[SensitiveDataType]*regexp.Regexp
	keywords map[SensitiveDataType][]string
}

// NewDetector creates a Detector with the built-in category table.
func NewDetector() *Detector {
	d := &Detector{
		patterns: make(map[SensitiveDataType]*regexp.Regexp, len(sensitivePatterns)),
		keywords: contextKeywords,
	}
	for typ, re := range sensitivePatterns {
		d.patterns[typ] = re
	}
	return d
}

// AddPattern registers a custom category pattern. Registering an
// existing category replaces its built-in pattern.
func (d *Detector) AddPattern(typ SensitiveDataType, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern for %s: %w", typ, err)
	}
	d.patterns[typ] = re
	return nil
}

// DetectSensitive returns all sensitive spans in text, ordered by
// offset. Overlapping detections keep the earlier, longer span.
func (d *Detector) DetectSensitive(text string) []Span {
	if text == "" {
		return nil
	}

	var spans []Span
	for typ, re := range d.patterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			spans = append(spans, Span{
				Type:       typ,
				Offset:     loc[0],
				Length:     loc[1] - loc[0],
				Confidence: patternConfidence,
			})
		}
	}

	spans = append(spans, d.detectInContext(text, spans)...)

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Offset != spans[j].Offset {
			return spans[i].Offset < spans[j].Offset
		}
		return spans[i].Length > spans[j].Length
	})
	return dropOverlaps(spans)
}

// RedactText replaces every detected span with a [TYPE_REDACTED]
// marker and returns the redacted text plus the spans found in the
// original.
func (d *Detector) RedactText(text string) (string, []Span) {
	spans := d.DetectSensitive(text)
	if len(spans) == 0 {
		return text, nil
	}

	var b strings.Builder
	last := 0
	for _, s := range spans {
		b.WriteString(text[last:s.Offset])
		b.WriteString(Marker(s.Type))
		last = s.End()
	}
	b.WriteString(text[last:])
	return b.String(), spans
}

// Marker returns the replacement marker for a category, e.g.
// "[SSN_REDACTED]".
func Marker(typ SensitiveDataType) string {
	return "[" + strings.ToUpper(string(typ)) + "_REDACTED]"
}

// detectInContext flags data-shaped tokens that sit near a category
// keyword but match no pattern. existing spans suppress duplicates.
func (d *Detector) detectInContext(text string, existing []Span) []Span {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	var spans []Span
	for i, tok := range tokens {
		if !looksLikeData(tok.value) {
			continue
		}
		if covered(existing, tok.offset, len(tok.value)) {
			continue
		}

		typ, ok := d.keywordNearby(tokens, i)
		if !ok {
			continue
		}
		spans = append(spans, Span{
			Type:       typ,
			Offset:     tok.offset,
			Length:     len(tok.value),
			Confidence: contextConfidence,
		})
	}
	return spans
}

// keywordNearby scans the token window around index i for a category
// keyword and returns the first matching category.
func (d *Detector) keywordNearby(tokens []token, i int) (SensitiveDataType, bool) {
	lo := i - contextWindow
	if lo < 0 {
		lo = 0
	}
	hi := i + contextWindow
	if hi >= len(tokens) {
		hi = len(tokens) - 1
	}

	for j := lo; j <= hi; j++ {
		if j == i {
			continue
		}
		word := strings.ToLower(strings.Trim(tokens[j].value, ":#.,;()[]"))
		for typ, words := range d.keywords {
			for _, kw := range words {
				if word == kw {
					return typ, true
				}
			}
		}
	}
	return "", false
}

type token struct {
	value  string
	offset int
}

// tokenize splits text on whitespace while keeping byte offsets.
func tokenize(text string) []token {
	var tokens []token
	start := -1
	for i, r := range text {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if start >= 0 {
				tokens = append(tokens, token{value: text[start:i], offset: start})
				start = -1
			}
		default:
			if start < 0 {
				start = i
			}
		}
	}
	if start >= 0 {
		tokens = append(tokens, token{value: text[start:], offset: start})
	}
	return tokens
}

// looksLikeData reports whether a token is shaped like a data value:
// mostly digits, an email-ish string, or an alphanumeric code.
func looksLikeData(tok string) bool {
	trimmed := strings.Trim(tok, ".,;:()[]")
	if len(trimmed) < 4 {
		return false
	}
	if strings.Contains(trimmed, "@") {
		return true
	}

	digits, letters, other := 0, 0, 0
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			letters++
		case r == '-' || r == '/' || r == '.':
			// separators common inside formatted values
		default:
			other++
		}
	}
	if other > 0 {
		return false
	}
	if digits >= 4 && letters == 0 {
		return true
	}
	// Alphanumeric code shape, e.g. passport or license numbers.
	return len(trimmed) >= 6 && digits >= 2 && letters >= 1
}

// covered reports whether [offset, offset+length) intersects any span.
func covered(spans []Span, offset, length int) bool {
	end := offset + length
	for _, s := range spans {
		if offset < s.End() && s.Offset < end {
			return true
		}
	}
	return false
}

// dropOverlaps removes spans that intersect an earlier-sorted span.
func dropOverlaps(spans []Span) []Span {
	if len(spans) <= 1 {
		return spans
	}
	out := spans[:1]
	for _, s := range spans[1:] {
		if s.Offset < out[len(out)-1].End() {
			continue
		}
		out = append(out, s)
	}
	return out
}
