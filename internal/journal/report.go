package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/focusnudge/focusnudge/internal/models"
)

// Report summarises the watcher's nudges dispatched since the given time
func (j *Journal) Report(since time.Time) (*models.Report, error) {
	summaries, err := j.repo.GetAppSummarySince(since)
	if err != nil {
		return nil, fmt.Errorf("failed to get app summary: %w", err)
	}

	var total, okay, answered int
	for _, s := range summaries {
		total += s.NudgeCount
		okay += s.OkayCount
		answered += s.OkayCount + s.CancelCount
	}

	report := &models.Report{
		Since:       since,
		Apps:        summaries,
		TotalNudges: total,
		GeneratedAt: j.now(),
	}
	if answered > 0 {
		report.OkayRate = float64(okay) / float64(answered)
	}

	return report, nil
}

// FormatReportText formats the report as human-readable text
func FormatReportText(report *models.Report) string {
	output := fmt.Sprintf("Nudge Report - since %s\n", report.Since.Format("2006-01-02 15:04"))
	output += fmt.Sprintf("Total Nudges: %d (%.0f%% accepted)\n\n", report.TotalNudges, report.OkayRate*100)

	if len(report.Apps) == 0 {
		output += "No nudges sent yet.\n"
		return output
	}

	output += fmt.Sprintf("%-30s %8s %8s %8s %8s\n", "Application", "Nudges", "Okay", "Cancel", "Pending")
	output += fmt.Sprintf("%s\n", "----------------------------------------------------------------------")

	for _, app := range report.Apps {
		output += fmt.Sprintf("%-30s %8d %8d %8d %8d\n",
			truncate(app.AppName, 30),
			app.NudgeCount,
			app.OkayCount,
			app.CancelCount,
			app.PendingCount)
	}

	return output
}

// FormatFailuresText lists nudges that could not be shown, or returns ""
// when there are none
func FormatFailuresText(failures []*models.ErrorLog) string {
	if len(failures) == 0 {
		return ""
	}

	output := fmt.Sprintf("\nRecent Failures: %d\n", len(failures))
	for _, f := range failures {
		app := f.AppName
		if app == "" {
			app = "-"
		}
		output += fmt.Sprintf("  %s  %-20s %s\n", f.Timestamp.Format("15:04:05"), truncate(app, 20), f.ErrorMsg)
	}
	return output
}

// FormatReportJSON formats the report as JSON
func FormatReportJSON(report *models.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
