package pagination

import (
	"context"
	"fmt"
)

const (
	repeatedCursorTemplateConstant = "pagination cursor %q repeated; listing would not terminate"
)

// Page is one batch of items plus the cursor for the following batch.
// An empty NextCursor signals that no further pages exist.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// FetchFunc retrieves the page addressed by cursor. The first page is requested with an empty cursor.
type FetchFunc[T any] func(executionContext context.Context, cursor string) (Page[T], error)

// RepeatedCursorError reports a remote that handed back a cursor it already served.
type RepeatedCursorError struct {
	Cursor string
}

// Error describes the repeated cursor.
func (repeatedCursorError RepeatedCursorError) Error() string {
	return fmt.Sprintf(repeatedCursorTemplateConstant, repeatedCursorError.Cursor)
}

// Pager walks pages lazily until the remote signals there is nothing more.
type Pager[T any] struct {
	fetch       FetchFunc[T]
	cursor      string
	seenCursors map[string]struct{}
	current     []T
	finished    bool
	fetchError  error
}

// NewPager constructs a Pager positioned before the first page.
func NewPager[T any](fetch FetchFunc[T]) *Pager[T] {
	pager := &Pager[T]{fetch: fetch}
	pager.Reset()
	return pager
}

// Next fetches the following page and reports whether it produced one.
// A page with no items ends the sequence even when a cursor is present.
func (pager *Pager[T]) Next(executionContext context.Context) bool {
	if pager.finished {
		return false
	}

	page, fetchError := pager.fetch(executionContext, pager.cursor)
	if fetchError != nil {
		pager.fetchError = fetchError
		pager.finish()
		return false
	}
	if len(page.Items) == 0 {
		pager.finish()
		return false
	}

	pager.current = page.Items
	if len(page.NextCursor) == 0 {
		pager.finished = true
		return true
	}
	if _, seen := pager.seenCursors[page.NextCursor]; seen {
		pager.fetchError = RepeatedCursorError{Cursor: page.NextCursor}
		pager.finished = true
		return true
	}

	pager.seenCursors[page.NextCursor] = struct{}{}
	pager.cursor = page.NextCursor
	return true
}

// Items returns the items of the page produced by the last successful Next call.
func (pager *Pager[T]) Items() []T {
	return pager.current
}

// Err returns the error that stopped iteration, if any.
func (pager *Pager[T]) Err() error {
	return pager.fetchError
}

// Reset rewinds the pager to the first page.
func (pager *Pager[T]) Reset() {
	pager.cursor = ""
	pager.seenCursors = make(map[string]struct{})
	pager.current = nil
	pager.finished = false
	pager.fetchError = nil
}

func (pager *Pager[T]) finish() {
	pager.current = nil
	pager.finished = true
}

// Collect drains every page into one slice, returning the items gathered before any error.
func Collect[T any](executionContext context.Context, fetch FetchFunc[T]) ([]T, error) {
	pager := NewPager(fetch)
	var collected []T
	for pager.Next(executionContext) {
		collected = append(collected, pager.Items()...)
	}
	return collected, pager.Err()
}
