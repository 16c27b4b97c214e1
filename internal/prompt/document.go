package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Section names, in document order.
const (
	SectionPersonality = "Personality"
	SectionPurpose     = "Purpose"
	SectionTone        = "Tone"
	SectionRules       = "Rules"
	SectionFAQ         = "FAQ"
)

// Sections lists the section names in the fixed document order.
var Sections = []string{SectionPersonality, SectionPurpose, SectionTone, SectionRules, SectionFAQ}

// ErrMalformedDocument reports a sectioned document that is missing a
// section, repeats one, or has them out of order.
var ErrMalformedDocument = errors.New("malformed prompt document")

// Step1 is the personality/purpose/tone bundle stored as step 1.
type Step1 struct {
	Personality string `json:"personality"`
	Purpose     string `json:"purpose"`
	Tone        string `json:"tone"`
}

// Step2 is the rules/FAQ bundle stored as step 2.
type Step2 struct {
	Rules string `json:"rules"`
	FAQ   string `json:"faq"`
}

// Document is the five-section preset assembled from both steps.
type Document struct {
	Personality string `json:"personality"`
	Purpose     string `json:"purpose"`
	Tone        string `json:"tone"`
	Rules       string `json:"rules"`
	FAQ         string `json:"faq"`
}

// IsEmpty reports whether every section body is blank.
func (d Document) IsEmpty() bool {
	for _, name := range Sections {
		if strings.TrimSpace(d.section(name)) != "" {
			return false
		}
	}
	return true
}

func (d Document) section(name string) string {
	switch name {
	case SectionPersonality:
		return d.Personality
	case SectionPurpose:
		return d.Purpose
	case SectionTone:
		return d.Tone
	case SectionRules:
		return d.Rules
	case SectionFAQ:
		return d.FAQ
	}
	return ""
}

func (d *Document) setSection(name, body string) {
	switch name {
	case SectionPersonality:
		d.Personality = body
	case SectionPurpose:
		d.Purpose = body
	case SectionTone:
		d.Tone = body
	case SectionRules:
		d.Rules = body
	case SectionFAQ:
		d.FAQ = body
	}
}

// Step1 returns the step-1 view of the document.
func (d Document) Step1() Step1 {
	return Step1{Personality: d.Personality, Purpose: d.Purpose, Tone: d.Tone}
}

// Step2 returns the step-2 view of the document.
func (d Document) Step2() Step2 {
	return Step2{Rules: d.Rules, FAQ: d.FAQ}
}

// ParseStep1 decodes step-1 content. Any decode failure or missing field
// yields empty strings.
func ParseStep1(content string) Step1 {
	f := decodeFields(content)
	return Step1{Personality: f["personality"], Purpose: f["purpose"], Tone: f["tone"]}
}

// ParseStep2 decodes step-2 content with the same tolerance as ParseStep1.
// Content that does not start like JSON is plain text and becomes the Rules
// body; broken JSON still degrades to empty fields.
func ParseStep2(content string) Step2 {
	trimmed := strings.TrimSpace(content)
	if trimmed != "" && !looksLikeJSON(trimmed) {
		return Step2{Rules: trimmed}
	}
	f := decodeFields(trimmed)
	return Step2{Rules: f["rules"], FAQ: f["faq"]}
}

func looksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") || strings.HasPrefix(s, "\"")
}

// decodeFields reads a JSON object into string fields. String values are
// kept as-is, arrays of strings are joined by newlines, everything else is
// dropped.
func decodeFields(content string) map[string]string {
	out := map[string]string{}
	var raw map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return out
	}
	for k, v := range raw {
		switch tv := v.(type) {
		case string:
			out[k] = tv
		case []any:
			lines := make([]string, 0, len(tv))
			for _, item := range tv {
				if s, ok := item.(string); ok {
					lines = append(lines, s)
				}
			}
			out[k] = strings.Join(lines, "\n")
		}
	}
	return out
}

// StepContent is the minimal step shape DocumentFromSteps needs.
type StepContent struct {
	Step    int
	Content string
}

// DocumentFromSteps merges step 1 and step 2 into a Document. Missing steps
// leave their sections empty; if a step number repeats, the last one wins.
func DocumentFromSteps(steps []StepContent) Document {
	var s1 Step1
	var s2 Step2
	for _, st := range steps {
		switch st.Step {
		case 1:
			s1 = ParseStep1(st.Content)
		case 2:
			s2 = ParseStep2(st.Content)
		}
	}
	return Document{
		Personality: s1.Personality,
		Purpose:     s1.Purpose,
		Tone:        s1.Tone,
		Rules:       s2.Rules,
		FAQ:         s2.FAQ,
	}
}

func marker(name string) string { return "~" + name }

// Serialize renders the document as five marker-delimited sections in the
// fixed order. Empty sections are still emitted.
func Serialize(d Document) string {
	var b strings.Builder
	for i, name := range Sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		m := marker(name)
		b.WriteString(m)
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(d.section(name)))
		b.WriteString("\n")
		b.WriteString(m)
	}
	return b.String()
}

// ParseDocument reads the sections in order: each section's opening marker
// is searched after the end of the previous section, and its body runs to
// the next occurrence of the same marker. Bodies are returned trimmed, so a
// body may mention the markers of other sections. Sections that are not
// delimited by a pair of markers are empty.
func ParseDocument(text string) Document {
	d, _ := scanSections(text)
	return d
}

// ValidateDocument is the strict counterpart of ParseDocument, used for
// documents produced by the model: every section must appear as a marker
// pair, in order.
func ValidateDocument(text string) (Document, error) {
	d, missing := scanSections(text)
	if missing != "" {
		return Document{}, fmt.Errorf("%w: section %s missing or out of order", ErrMalformedDocument, missing)
	}
	return d, nil
}

// scanSections returns the parsed document and the first section that had
// no marker pair after its predecessor, or "" when all five were found.
func scanSections(text string) (Document, string) {
	var (
		d       Document
		missing string
		pos     int
	)
	for _, name := range Sections {
		m := marker(name)
		open := strings.Index(text[pos:], m)
		if open < 0 {
			if missing == "" {
				missing = name
			}
			continue
		}
		bodyStart := pos + open + len(m)
		end := strings.Index(text[bodyStart:], m)
		if end < 0 {
			if missing == "" {
				missing = name
			}
			continue
		}
		d.setSection(name, strings.TrimSpace(text[bodyStart:bodyStart+end]))
		pos = bodyStart + end + len(m)
	}
	return d, missing
}
