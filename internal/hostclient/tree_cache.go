package hostclient

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultTreeCacheSize bounds how many project trees stay in memory during a run.
const DefaultTreeCacheSize = 256

// TreeLister lists every file path of a project at a ref.
type TreeLister interface {
	ListTree(executionContext context.Context, projectID int64, ref string) ([]string, error)
}

type treeCacheKey struct {
	projectID int64
	ref       string
}

// CachingTreeLister memoizes successful tree listings so the validator and the duplicate
// resolver walk each repository once per run. Failures are not cached.
type CachingTreeLister struct {
	delegate TreeLister
	cache    *lru.Cache[treeCacheKey, []string]
}

// NewCachingTreeLister wraps delegate with an LRU cache holding up to size trees.
func NewCachingTreeLister(delegate TreeLister, size int) (*CachingTreeLister, error) {
	if size <= 0 {
		size = DefaultTreeCacheSize
	}
	cache, cacheError := lru.New[treeCacheKey, []string](size)
	if cacheError != nil {
		return nil, cacheError
	}
	return &CachingTreeLister{delegate: delegate, cache: cache}, nil
}

// ListTree returns the cached tree or fetches it from the delegate.
func (lister *CachingTreeLister) ListTree(executionContext context.Context, projectID int64, ref string) ([]string, error) {
	key := treeCacheKey{projectID: projectID, ref: ref}
	if cachedPaths, cached := lister.cache.Get(key); cached {
		return cachedPaths, nil
	}

	filePaths, listError := lister.delegate.ListTree(executionContext, projectID, ref)
	if listError != nil {
		return nil, listError
	}
	lister.cache.Add(key, filePaths)
	return filePaths, nil
}
