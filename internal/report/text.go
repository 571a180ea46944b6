package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	headingRuleWidthConstant      = 80
	sectionRuleWidthConstant      = 40
	reportTitleConstant           = "SCA DRIFT RECONCILIATION REPORT"
	generatedLineTemplateConstant = "Generated: %s"
	runLineTemplateConstant       = "Run: %s"
	generatedTimeLayoutConstant   = "2006-01-02 15:04:05"
	sectionSummaryConstant        = "SUMMARY"
	sectionScannerOnlyConstant    = "SCANNER-ONLY (STALE TARGETS)"
	sectionHostOnlyConstant       = "HOST-ONLY (NO SCANNER TARGETS)"
	sectionUnmappableConstant     = "UNMAPPABLE TARGETS (URL COULD NOT BE KEYED)"
	sectionMatchedConstant        = "MATCHED REPOSITORIES"
	sectionDuplicatesConstant     = "DUPLICATE PROJECTS"
	sectionErrorsConstant         = "COULD NOT BE CHECKED"
	noneLineConstant              = "(none)"
)

// RenderText writes the line-oriented summary of bundle.
func RenderText(writer io.Writer, bundle Bundle) error {
	lines := textLines(bundle)
	_, writeError := io.WriteString(writer, strings.Join(lines, "\n")+"\n")
	return writeError
}

func textLines(bundle Bundle) []string {
	heavyRule := strings.Repeat("=", headingRuleWidthConstant)
	lines := []string{heavyRule, reportTitleConstant, heavyRule}
	lines = append(lines, fmt.Sprintf(generatedLineTemplateConstant, bundle.GeneratedAt.In(time.Local).Format(generatedTimeLayoutConstant)))
	if len(bundle.RunID) > 0 {
		lines = append(lines, fmt.Sprintf(runLineTemplateConstant, bundle.RunID))
	}
	lines = append(lines, "")

	summary := bundle.Summary
	lines = appendSection(lines, sectionSummaryConstant, []string{
		fmt.Sprintf("Matched repositories: %d (%d target pairs)", summary.MatchedRepositories, summary.MatchedPairs),
		fmt.Sprintf("Scanner-only targets (stale): %d", summary.ScannerOnly),
		fmt.Sprintf("Host-only repositories (no scanner targets): %d", summary.HostOnly),
		fmt.Sprintf("Unmappable targets: %d", summary.Unmappable),
		fmt.Sprintf("Tracked files present: %d  missing: %d  unverified: %d", summary.TrackedPresent, summary.TrackedMissing, summary.TrackedUnverified),
		fmt.Sprintf("Supported files not tracked: %d", summary.UntrackedSupported),
		fmt.Sprintf("Duplicate groups: %d  projects to remove: %d", summary.DuplicateGroups, summary.ProjectsToRemove),
		fmt.Sprintf("Entries that could not be checked: %d", summary.Errors),
	})

	var scannerOnlyLines []string
	for _, target := range bundle.ScannerOnly {
		scannerOnlyLines = append(scannerOnlyLines,
			fmt.Sprintf("Repository key: %s", target.RepositoryKey),
			fmt.Sprintf("  - %s (%s) org %s, %d project(s)", target.DisplayName, target.URL, organizationLabel(target.OrgName, target.OrgID), target.ProjectCount),
		)
	}
	lines = appendSection(lines, sectionScannerOnlyConstant, scannerOnlyLines)

	var hostOnlyLines []string
	for _, repository := range bundle.HostOnly {
		hostOnlyLines = append(hostOnlyLines, fmt.Sprintf("Repository key: %s  URL: %s", repository.Key, repository.WebURL))
	}
	lines = appendSection(lines, sectionHostOnlyConstant, hostOnlyLines)

	var unmappableLines []string
	for _, target := range bundle.Unmappable {
		unmappableLines = append(unmappableLines, fmt.Sprintf("Target: %s (org %s) URL %q: %s", target.DisplayName, organizationLabel(target.OrgName, target.OrgID), target.URL, target.ParseFailure))
	}
	lines = appendSection(lines, sectionUnmappableConstant, unmappableLines)

	var matchedLines []string
	for _, repository := range bundle.Matched {
		matchedLines = append(matchedLines,
			fmt.Sprintf("Repository key: %s", repository.Repository.Key),
			fmt.Sprintf("  Tracked files present: %d  Stale files: %d  Unverified files: %d  Supported files: %d",
				len(repository.Tracked), len(repository.Stale), len(repository.Unverified), repository.SupportedFiles),
		)
		matchedLines = appendFileRecords(matchedLines, "  Tracked files:", "[present]", repository.Tracked)
		matchedLines = appendFileRecords(matchedLines, "  Stale files (missing from repository):", "[missing]", repository.Stale)
		matchedLines = appendFileRecords(matchedLines, "  Unverified files:", "[error]", repository.Unverified)
		if len(repository.TreeError) > 0 {
			matchedLines = append(matchedLines, "  Repository tree could not be listed: "+repository.TreeError)
		}
		if len(repository.UntrackedSupported) > 0 {
			matchedLines = append(matchedLines, "  Supported files not tracked:")
			for _, untracked := range repository.UntrackedSupported {
				matchedLines = append(matchedLines, "    - "+untracked)
			}
		}
		matchedLines = append(matchedLines, "")
	}
	lines = appendSection(lines, sectionMatchedConstant, matchedLines)

	var duplicateLines []string
	for _, duplicate := range bundle.Duplicates {
		duplicateLines = append(duplicateLines,
			fmt.Sprintf("Target: %s (%s)  Identifier: %s", duplicate.TargetName, duplicate.TargetID, duplicate.UniqueIdentifier),
			fmt.Sprintf("  KEEP   %s  %s  created %s", duplicate.Keep.ID, duplicate.Keep.Name, formatCreated(duplicate.Keep.Created)),
		)
		for _, removed := range duplicate.Remove {
			duplicateLines = append(duplicateLines, fmt.Sprintf("  REMOVE %s  %s  created %s  (%s)", removed.ID, removed.Name, formatCreated(removed.Created), duplicate.Reason))
		}
		if duplicate.Artifact != nil {
			duplicateLines = append(duplicateLines, fmt.Sprintf("  Artifact check: %s (expected %q under %s)", duplicate.Artifact.Status, duplicate.Artifact.Expected, duplicate.Artifact.SearchRoot))
			for _, manifest := range duplicate.Artifact.Manifests {
				duplicateLines = append(duplicateLines, fmt.Sprintf("    %s declares %q: %s", manifest.Path, manifest.ArtifactID, manifest.Status))
			}
		}
	}
	lines = appendSection(lines, sectionDuplicatesConstant, duplicateLines)

	var errorLines []string
	for _, entry := range bundle.Errors {
		errorLines = append(errorLines, fmt.Sprintf("[%s] %s (%s): %s", entry.Scope, entry.Subject, entry.Kind, entry.Message))
	}
	return appendSection(lines, sectionErrorsConstant, errorLines)
}

func appendSection(lines []string, title string, body []string) []string {
	lines = append(lines, title, strings.Repeat("-", sectionRuleWidthConstant))
	if len(body) == 0 {
		lines = append(lines, noneLineConstant)
	}
	lines = append(lines, body...)
	return append(lines, "")
}

func appendFileRecords(lines []string, heading string, marker string, records []FileRecord) []string {
	if len(records) == 0 {
		return lines
	}
	lines = append(lines, heading)
	for _, record := range records {
		lines = append(lines, fmt.Sprintf("    %s %s", marker, record.FilePath))
		if len(record.ProjectName) > 0 {
			lines = append(lines,
				"      Project: "+record.ProjectName,
				"      Org: "+organizationLabel(record.OrgName, record.OrgID),
				"      URL: "+record.ProjectURL,
			)
		}
		if len(record.Error) > 0 {
			lines = append(lines, "      Error: "+record.Error)
		}
	}
	return lines
}

func organizationLabel(name string, identifier string) string {
	if len(name) == 0 {
		return identifier
	}
	return fmt.Sprintf("%s (%s)", name, identifier)
}

func formatCreated(created time.Time) string {
	if created.IsZero() {
		return "unknown"
	}
	return created.UTC().Format(time.RFC3339)
}
