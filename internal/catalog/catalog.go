package catalog

import (
	"github.com/temirov/scadrift/internal/hostclient"
	"github.com/temirov/scadrift/internal/repokey"
)

// RepositoryRecord is one accessible host repository.
type RepositoryRecord struct {
	Key           repokey.CanonicalKey
	DefaultBranch string
	WebURL        string
	Metadata      hostclient.Repository
}

// UnparseableRepository is a listed repository whose URL produced no key.
type UnparseableRepository struct {
	Repository hostclient.Repository
	Failure    repokey.ParseFailure
}

// DuplicateKeyNote records a repository dropped because an earlier one already claimed its key.
type DuplicateKeyNote struct {
	Key       repokey.CanonicalKey
	Kept      hostclient.Repository
	Discarded hostclient.Repository
}

// Catalog maps canonical keys to repository records in discovery order. It is read-only once built.
type Catalog struct {
	records       []RepositoryRecord
	index         map[repokey.CanonicalKey]int
	unparseable   []UnparseableRepository
	duplicateKeys []DuplicateKeyNote
}

// NewCatalog assembles a catalog from records, applying first-seen-wins for repeated keys.
func NewCatalog(records []RepositoryRecord) *Catalog {
	catalog := &Catalog{index: make(map[repokey.CanonicalKey]int, len(records))}
	for _, record := range records {
		catalog.add(record)
	}
	return catalog
}

func (catalog *Catalog) add(record RepositoryRecord) bool {
	if existingIndex, exists := catalog.index[record.Key]; exists {
		catalog.duplicateKeys = append(catalog.duplicateKeys, DuplicateKeyNote{
			Key:       record.Key,
			Kept:      catalog.records[existingIndex].Metadata,
			Discarded: record.Metadata,
		})
		return false
	}
	catalog.index[record.Key] = len(catalog.records)
	catalog.records = append(catalog.records, record)
	return true
}

// Len returns the number of keyed repositories.
func (catalog *Catalog) Len() int {
	return len(catalog.records)
}

// Records returns the keyed repositories in discovery order.
func (catalog *Catalog) Records() []RepositoryRecord {
	return append([]RepositoryRecord(nil), catalog.records...)
}

// Lookup returns the record keyed by key.
func (catalog *Catalog) Lookup(key repokey.CanonicalKey) (RepositoryRecord, bool) {
	recordIndex, exists := catalog.index[key]
	if !exists {
		return RepositoryRecord{}, false
	}
	return catalog.records[recordIndex], true
}

// Unparseable lists repositories excluded because their URL could not be keyed.
func (catalog *Catalog) Unparseable() []UnparseableRepository {
	return append([]UnparseableRepository(nil), catalog.unparseable...)
}

// DuplicateKeys lists repositories dropped by first-seen-wins.
func (catalog *Catalog) DuplicateKeys() []DuplicateKeyNote {
	return append([]DuplicateKeyNote(nil), catalog.duplicateKeys...)
}
