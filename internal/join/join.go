package join

import (
	"github.com/temirov/scadrift/internal/catalog"
	"github.com/temirov/scadrift/internal/repokey"
	"github.com/temirov/scadrift/internal/targets"
)

// Matched pairs one host repository with one target sharing its key.
type Matched struct {
	Repository catalog.RepositoryRecord
	Target     targets.TargetRecord
}

// ScannerOnly is a keyed target whose repository is absent from the catalog.
type ScannerOnly struct {
	Target targets.TargetRecord
}

// HostOnly is a catalog repository no target refers to.
type HostOnly struct {
	Repository catalog.RepositoryRecord
}

// Result partitions the catalog and the targets.
// Every catalog record lands in exactly one of Matched or HostOnly, every keyed target in exactly one of
// Matched or ScannerOnly, and every target without a key in Unmappable.
type Result struct {
	Matched     []Matched
	ScannerOnly []ScannerOnly
	HostOnly    []HostOnly
	Unmappable  []targets.TargetRecord
}

// Join classifies repositories and targets. Output order follows input encounter order.
func Join(repositoryCatalog *catalog.Catalog, targetRecords []targets.TargetRecord) Result {
	targetsByKey := make(map[repokey.CanonicalKey][]targets.TargetRecord)
	for _, targetRecord := range targetRecords {
		if !targetRecord.IsMappable() {
			continue
		}
		targetsByKey[*targetRecord.Key] = append(targetsByKey[*targetRecord.Key], targetRecord)
	}

	result := Result{}
	var records []catalog.RepositoryRecord
	if repositoryCatalog != nil {
		records = repositoryCatalog.Records()
	}
	for _, record := range records {
		keyedTargets := targetsByKey[record.Key]
		if len(keyedTargets) == 0 {
			result.HostOnly = append(result.HostOnly, HostOnly{Repository: record})
			continue
		}
		for _, keyedTarget := range keyedTargets {
			result.Matched = append(result.Matched, Matched{Repository: record, Target: keyedTarget})
		}
	}

	for _, targetRecord := range targetRecords {
		if !targetRecord.IsMappable() {
			result.Unmappable = append(result.Unmappable, targetRecord)
			continue
		}
		if repositoryCatalog != nil {
			if _, cataloged := repositoryCatalog.Lookup(*targetRecord.Key); cataloged {
				continue
			}
		}
		result.ScannerOnly = append(result.ScannerOnly, ScannerOnly{Target: targetRecord})
	}

	return result
}

// MatchedByRepository groups matched pairs by repository key, preserving encounter order.
func (result Result) MatchedByRepository() [][]Matched {
	groupIndex := make(map[repokey.CanonicalKey]int)
	var groups [][]Matched
	for _, matched := range result.Matched {
		index, exists := groupIndex[matched.Repository.Key]
		if !exists {
			groupIndex[matched.Repository.Key] = len(groups)
			groups = append(groups, []Matched{matched})
			continue
		}
		groups[index] = append(groups[index], matched)
	}
	return groups
}
