package report

import (
	"encoding/csv"
	"io"
	"strings"
)

const (
	csvHeaderOrgIDConstant            = "org_id"
	csvHeaderOrgNameConstant          = "org_name"
	csvHeaderTargetIDConstant         = "target_id"
	csvHeaderTargetNameConstant       = "target_name"
	csvHeaderUniqueIdentifierConstant = "unique_identifier"
	csvHeaderActionConstant           = "action"
	csvHeaderProjectIDConstant        = "project_id"
	csvHeaderProjectNameConstant      = "project_name"
	csvHeaderProjectTypeConstant      = "project_type"
	csvHeaderCreatedConstant          = "created"
	csvHeaderReasonConstant           = "reason"
	csvHeaderKeptProjectIDConstant    = "kept_project_id"
	csvHeaderArtifactExpectedConstant = "artifact_expected"
	csvHeaderArtifactStatusConstant   = "artifact_status"
	csvHeaderArtifactFoundConstant    = "artifact_manifests"
	csvHeaderProjectURLConstant       = "project_url"
	manifestPairSeparatorConstant     = "="
	manifestListSeparatorConstant     = "; "
)

// DuplicateAction is the operator action proposed for one project.
type DuplicateAction string

// Duplicate actions.
const (
	DuplicateActionKeep   DuplicateAction = "KEEP"
	DuplicateActionRemove DuplicateAction = "REMOVE"
)

// DuplicateRow is one project of a duplicate group flattened for export.
type DuplicateRow struct {
	OrgID            string
	OrgName          string
	TargetID         string
	TargetName       string
	UniqueIdentifier string
	Action           DuplicateAction
	Project          ProjectReference
	Reason           string
	KeptProjectID    string
	ArtifactExpected string
	ArtifactStatus   string
	ArtifactFound    string
}

// CSVRecord returns the row formatted for CSV encoding.
func (row DuplicateRow) CSVRecord() []string {
	return []string{
		row.OrgID,
		row.OrgName,
		row.TargetID,
		row.TargetName,
		row.UniqueIdentifier,
		string(row.Action),
		row.Project.ID,
		row.Project.Name,
		row.Project.Type,
		formatCreated(row.Project.Created),
		row.Reason,
		row.KeptProjectID,
		row.ArtifactExpected,
		row.ArtifactStatus,
		row.ArtifactFound,
		row.Project.URL,
	}
}

// DuplicateRows flattens every duplicate decision into one KEEP row followed by its REMOVE rows.
func DuplicateRows(bundle Bundle) []DuplicateRow {
	var rows []DuplicateRow
	for _, duplicate := range bundle.Duplicates {
		base := DuplicateRow{
			OrgID:            duplicate.OrgID,
			OrgName:          duplicate.OrgName,
			TargetID:         duplicate.TargetID,
			TargetName:       duplicate.TargetName,
			UniqueIdentifier: duplicate.UniqueIdentifier,
			KeptProjectID:    duplicate.Keep.ID,
		}
		if duplicate.Artifact != nil {
			base.ArtifactExpected = duplicate.Artifact.Expected
			base.ArtifactStatus = duplicate.Artifact.Status
			base.ArtifactFound = formatManifests(duplicate.Artifact.Manifests)
		}

		keepRow := base
		keepRow.Action = DuplicateActionKeep
		keepRow.Project = duplicate.Keep
		rows = append(rows, keepRow)

		for _, removed := range duplicate.Remove {
			removeRow := base
			removeRow.Action = DuplicateActionRemove
			removeRow.Project = removed
			removeRow.Reason = duplicate.Reason
			rows = append(rows, removeRow)
		}
	}
	return rows
}

// WriteDuplicatesCSV writes the duplicate decision table with a header row.
func WriteDuplicatesCSV(writer io.Writer, bundle Bundle) error {
	csvWriter := csv.NewWriter(writer)
	header := []string{
		csvHeaderOrgIDConstant,
		csvHeaderOrgNameConstant,
		csvHeaderTargetIDConstant,
		csvHeaderTargetNameConstant,
		csvHeaderUniqueIdentifierConstant,
		csvHeaderActionConstant,
		csvHeaderProjectIDConstant,
		csvHeaderProjectNameConstant,
		csvHeaderProjectTypeConstant,
		csvHeaderCreatedConstant,
		csvHeaderReasonConstant,
		csvHeaderKeptProjectIDConstant,
		csvHeaderArtifactExpectedConstant,
		csvHeaderArtifactStatusConstant,
		csvHeaderArtifactFoundConstant,
		csvHeaderProjectURLConstant,
	}
	if writeError := csvWriter.Write(header); writeError != nil {
		return writeError
	}
	for _, row := range DuplicateRows(bundle) {
		if writeError := csvWriter.Write(row.CSVRecord()); writeError != nil {
			return writeError
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

func formatManifests(manifests []ManifestRecord) string {
	pairs := make([]string, 0, len(manifests))
	for _, manifest := range manifests {
		pairs = append(pairs, manifest.Path+manifestPairSeparatorConstant+manifest.ArtifactID)
	}
	return strings.Join(pairs, manifestListSeparatorConstant)
}
