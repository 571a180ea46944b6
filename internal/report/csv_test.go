package report_test

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/scadrift/internal/report"
)

func TestDuplicateRowsEmitKeepThenRemove(testInstance *testing.T) {
	rows := report.DuplicateRows(report.Assemble(reconciliationInput()))

	require.Len(testInstance, rows, 2)
	require.Equal(testInstance, report.DuplicateActionKeep, rows[0].Action)
	require.Equal(testInstance, "p-10", rows[0].Project.ID)
	require.Empty(testInstance, rows[0].Reason)
	require.Equal(testInstance, report.DuplicateActionRemove, rows[1].Action)
	require.Equal(testInstance, "p-11", rows[1].Project.ID)
	require.Equal(testInstance, "stale duplicate", rows[1].Reason)
	require.Equal(testInstance, "p-10", rows[1].KeptProjectID)
	require.Equal(testInstance, "ERROR", rows[1].ArtifactStatus)
	require.Equal(testInstance, "service/pom.xml=", rows[1].ArtifactFound)
}

func TestWriteDuplicatesCSVWritesHeaderAndRows(testInstance *testing.T) {
	var output bytes.Buffer
	require.NoError(testInstance, report.WriteDuplicatesCSV(&output, report.Assemble(reconciliationInput())))

	records, readError := csv.NewReader(&output).ReadAll()
	require.NoError(testInstance, readError)
	require.Len(testInstance, records, 3)
	require.Equal(testInstance, "org_id", records[0][0])
	require.Equal(testInstance, "action", records[0][5])
	require.Equal(testInstance, "KEEP", records[1][5])
	require.Equal(testInstance, "REMOVE", records[2][5])
	require.Equal(testInstance, "2026-03-02T09:30:00Z", records[2][9])
	require.Len(testInstance, records[1], len(records[0]))
}

func TestWriteDuplicatesCSVWithoutDuplicatesWritesHeaderOnly(testInstance *testing.T) {
	var output bytes.Buffer
	require.NoError(testInstance, report.WriteDuplicatesCSV(&output, report.Bundle{}))

	records, readError := csv.NewReader(&output).ReadAll()
	require.NoError(testInstance, readError)
	require.Len(testInstance, records, 1)
}
