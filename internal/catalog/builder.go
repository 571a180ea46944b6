package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/scadrift/internal/hostclient"
	"github.com/temirov/scadrift/internal/pagination"
	"github.com/temirov/scadrift/internal/repokey"
)

const (
	listRepositoriesErrorTemplateConstant = "unable to list host repositories: %w"
	catalogBuiltMessageConstant           = "Repository catalog built"
	unparseableRepositoryMessageConstant  = "Repository URL could not be keyed"
	duplicateKeyMessageConstant           = "Repository key already claimed; keeping first seen"
	logFieldRepositoriesConstant          = "repositories"
	logFieldUnparseableConstant           = "unparseable"
	logFieldDuplicateKeysConstant         = "duplicate_keys"
	logFieldPagesConstant                 = "pages"
	logFieldRepositoryConstant            = "repository"
	logFieldKeptConstant                  = "kept"
	logFieldKeyConstant                   = "key"
)

// RepositoryPageSource serves host repository listings one page at a time.
type RepositoryPageSource interface {
	RepositoryPage(executionContext context.Context, cursor string) (pagination.Page[hostclient.Repository], error)
}

// KeyNormalizer turns repository URLs into canonical keys.
type KeyNormalizer interface {
	Normalize(rawURL string) (repokey.CanonicalKey, error)
}

// Builder drains the host listing into a Catalog.
type Builder struct {
	source     RepositoryPageSource
	normalizer KeyNormalizer
	logger     *zap.Logger
}

// NewBuilder constructs a Builder.
func NewBuilder(source RepositoryPageSource, normalizer KeyNormalizer, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{source: source, normalizer: normalizer, logger: logger}
}

// Build walks every page until the host signals the end and keys each repository.
func (builder *Builder) Build(executionContext context.Context) (*Catalog, error) {
	catalog := NewCatalog(nil)
	pager := pagination.NewPager(builder.source.RepositoryPage)

	pageCount := 0
	for pager.Next(executionContext) {
		pageCount++
		for _, repository := range pager.Items() {
			builder.addRepository(catalog, repository)
		}
	}
	if pagerError := pager.Err(); pagerError != nil {
		return nil, fmt.Errorf(listRepositoriesErrorTemplateConstant, pagerError)
	}

	builder.logger.Info(catalogBuiltMessageConstant,
		zap.Int(logFieldRepositoriesConstant, catalog.Len()),
		zap.Int(logFieldUnparseableConstant, len(catalog.unparseable)),
		zap.Int(logFieldDuplicateKeysConstant, len(catalog.duplicateKeys)),
		zap.Int(logFieldPagesConstant, pageCount),
	)
	return catalog, nil
}

func (builder *Builder) addRepository(catalog *Catalog, repository hostclient.Repository) {
	key, normalizeError := builder.normalizer.Normalize(repositoryURL(repository))
	if normalizeError != nil {
		var parseFailure repokey.ParseFailure
		if !errors.As(normalizeError, &parseFailure) {
			parseFailure = repokey.ParseFailure{Input: repositoryURL(repository), Reason: normalizeError.Error()}
		}
		catalog.unparseable = append(catalog.unparseable, UnparseableRepository{Repository: repository, Failure: parseFailure})
		builder.logger.Warn(unparseableRepositoryMessageConstant,
			zap.String(logFieldRepositoryConstant, repository.PathWithNamespace),
			zap.Error(normalizeError),
		)
		return
	}

	record := RepositoryRecord{
		Key:           key,
		DefaultBranch: repository.DefaultBranch,
		WebURL:        repository.WebURL,
		Metadata:      repository,
	}
	if !catalog.add(record) {
		builder.logger.Warn(duplicateKeyMessageConstant,
			zap.String(logFieldKeyConstant, key.String()),
			zap.String(logFieldRepositoryConstant, repository.PathWithNamespace),
			zap.String(logFieldKeptConstant, catalog.duplicateKeys[len(catalog.duplicateKeys)-1].Kept.PathWithNamespace),
		)
	}
}

func repositoryURL(repository hostclient.Repository) string {
	if len(repository.WebURL) > 0 {
		return repository.WebURL
	}
	return repository.HTTPURLToRepo
}
