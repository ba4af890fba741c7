package notify

import (
	"fmt"
	"strings"

	"github.com/CMSgov/xc-harvester/harvester/models"
)

// Report summarizes a finished harvest run.
type Report struct {
	Provider   string
	Schedule   string
	RequestURL string
	Status     models.Status
	// Killed marks a run stopped by the user.
	Killed   bool
	Counts   models.Counts
	Warnings []string
	Errors   []string
}

func (r Report) Subject() string {
	status := strings.ToLower(string(r.Status))
	if r.Killed {
		status = "manually terminated"
	}
	return fmt.Sprintf("[MST] Harvest %s: %s", status, r.Provider)
}

func (r Report) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Provider: %s\n", r.Provider)
	fmt.Fprintf(&b, "Schedule: %s\n", r.Schedule)
	fmt.Fprintf(&b, "Request: %s\n", r.RequestURL)
	if r.Killed {
		b.WriteString("Status: manually terminated\n")
	} else {
		fmt.Fprintf(&b, "Status: %s\n", r.Status)
	}
	b.WriteString("\n")

	total := "unknown"
	if r.Counts.CompleteListSize >= 0 {
		total = fmt.Sprint(r.Counts.CompleteListSize)
	}
	fmt.Fprintf(&b, "Total records available: %s\n", total)
	fmt.Fprintf(&b, "Records harvested: %d\n", r.Counts.Harvested())
	fmt.Fprintf(&b, "Records deleted: %d\n", r.Counts.Totals.Deleted)
	fmt.Fprintf(&b, "Records failed: %d\n", r.Counts.Failed)
	if r.Counts.CompleteListSize >= 0 && r.Counts.CompleteListSize != r.Counts.Processed {
		fmt.Fprintf(&b, "WARNING: the provider reported %d records but %d were processed\n",
			r.Counts.CompleteListSize, r.Counts.Processed)
	}

	section(&b, "Warnings", r.Warnings)
	section(&b, "Errors", r.Errors)
	return b.String()
}

func section(b *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, l := range lines {
		fmt.Fprintf(b, "  %s\n", l)
	}
}
