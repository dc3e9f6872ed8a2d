package bootstrap

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// PrintSeedResult writes a human readable summary of a seed run to w.
func PrintSeedResult(w io.Writer, result *SeedResult) {
	if result == nil {
		return
	}

	printSectionHeader(w, "SEED COMPLETED")
	if result.Removed > 0 {
		fmt.Fprintf(w, "\n🧹 Removed %d existing records\n", result.Removed)
	}
	printRecords(w, "🔑 Permissions", result.Permissions)
	printRecords(w, "📋 Roles", result.Roles)
	printRecords(w, "👤 Users", result.Users)
	printSectionFooter(w)
}

func printSectionHeader(w io.Writer, title string) {
	border := strings.Repeat("=", 80)
	fmt.Fprintf(w, "\n%s\n", border)
	fmt.Fprintf(w, "🚀 %s\n", title)
	fmt.Fprintf(w, "%s\n", border)
}

func printSectionFooter(w io.Writer) {
	fmt.Fprintf(w, "%s\n\n", strings.Repeat("=", 80))
}

func printRecords(w io.Writer, title string, records []SeedRecord) {
	fmt.Fprintf(w, "\n%s: %d total, %d created\n", title, len(records), countCreated(records))
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, r := range records {
		status := "✓ Already existed"
		if r.Created {
			status = "✨ Created"
		}
		fmt.Fprintf(w, "  %-32s %-26s %s\n", r.Key, r.ID, status)
	}
}

// LogSeedSummary logs the counts of a seed run with slog.
func LogSeedSummary(result *SeedResult) {
	if result == nil {
		return
	}
	slog.Info("Seed summary",
		"removed", result.Removed,
		"permissions_total", len(result.Permissions),
		"permissions_created", countCreated(result.Permissions),
		"roles_total", len(result.Roles),
		"roles_created", countCreated(result.Roles),
		"users_total", len(result.Users),
		"users_created", countCreated(result.Users),
	)
}
