package claude

import (
	"fmt"
	"strings"

	"github.com/garagescholars/garage-tech-stack-sub001/job"
)

const systemPrompt = `You write standard operating procedures for a garage organization crew.
Respond with markdown only. Organize the document into numbered sections whose
headers have the exact form "## N. TITLE". Always include a section titled
"PHASE SEQUENCE" containing a numbered list ("1. Step") of the on-site phases in
order, one phase per line. Keep every phase short and actionable.`

func buildPrompt(j *job.Job, adminNotes string, photoURLs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Client: %s\n", j.ClientName)
	if j.Address != "" {
		fmt.Fprintf(&b, "Address: %s\n", j.Address)
	}
	fmt.Fprintf(&b, "Package: %s\n", j.Package)
	if !j.ScheduledFor.IsZero() {
		fmt.Fprintf(&b, "Scheduled: %s %s\n", j.ScheduledFor.Format("2006-01-02"), j.TimeWindow)
	}
	writeList(&b, "Products", j.ProductSelections)
	writeList(&b, "Shelving", j.ShelvingSelections)
	writeList(&b, "Add-ons", j.AddOns)
	if j.AccessNotes != "" {
		fmt.Fprintf(&b, "Access notes: %s\n", j.AccessNotes)
	}
	if j.LeadNotes != "" {
		fmt.Fprintf(&b, "Lead notes: %s\n", j.LeadNotes)
	}
	writeList(&b, "Intake photos", photoURLs)
	if adminNotes != "" {
		fmt.Fprintf(&b, "\nAdmin guidance for this draft:\n%s\n", adminNotes)
	}
	return b.String()
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
