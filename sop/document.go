package sop

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/garagescholars/garage-tech-stack-sub001/job"
)

// PhaseSequenceTitle names the section whose numbered list becomes the
// job checklist.
const PhaseSequenceTitle = "PHASE SEQUENCE"

var (
	headerRe = regexp.MustCompile(`^##\s*(\d+)\.\s*(.+?)\s*$`)
	phaseRe  = regexp.MustCompile(`^\s*(\d+)\.\s+(.+?)\s*$`)
)

// Section is one numbered "## N. TITLE" block of a document.
type Section struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Document is a parsed work-instruction document.
type Document struct {
	Raw      string    `json:"raw"`
	Sections []Section `json:"sections"`
}

// Parse splits text into numbered sections. Text before the first header
// is not part of any section. A document with no headers has zero sections
// and is rendered opaquely (see Fallback).
func Parse(text string) Document {
	doc := Document{Raw: text}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var cur *Section
	var body []string
	flush := func() {
		if cur == nil {
			return
		}
		cur.Body = strings.Trim(strings.Join(body, "\n"), "\n")
		doc.Sections = append(doc.Sections, *cur)
	}
	for _, line := range lines {
		if m := headerRe.FindStringSubmatch(line); m != nil {
			flush()
			n, _ := strconv.Atoi(m[1]) //nolint:errcheck // regexp guarantees digits
			cur = &Section{Number: n, Title: m[2]}
			body = body[:0]
			continue
		}
		if cur != nil {
			body = append(body, line)
		}
	}
	flush()
	return doc
}

// Fallback reports whether the document has no recognizable sections and
// must be rendered as a single opaque block.
func (d Document) Fallback() bool { return len(d.Sections) == 0 }

// View returns the sections to render. A fallback document renders as one
// untitled section holding the whole text.
func (d Document) View() []Section {
	if d.Fallback() {
		return []Section{{Body: strings.TrimSpace(d.Raw)}}
	}
	return d.Sections
}

// Section returns the first section whose title matches, ignoring case.
func (d Document) Section(title string) (Section, bool) {
	for _, s := range d.Sections {
		if strings.EqualFold(strings.TrimSpace(s.Title), title) {
			return s, true
		}
	}
	return Section{}, false
}

// Phases returns the numbered items of the PHASE SEQUENCE section with
// their ordinals stripped. Lines that are not "<int>. <text>" are ignored.
func (d Document) Phases() []string {
	s, ok := d.Section(PhaseSequenceTitle)
	if !ok {
		return nil
	}
	var out []string
	for _, line := range strings.Split(s.Body, "\n") {
		if m := phaseRe.FindStringSubmatch(line); m != nil {
			out = append(out, m[2])
		}
	}
	return out
}

// Checklist returns the phases, or the default two-item checklist when the
// document yields none.
func (d Document) Checklist() []string {
	if phases := d.Phases(); len(phases) > 0 {
		return phases
	}
	return append([]string(nil), job.DefaultChecklist...)
}
