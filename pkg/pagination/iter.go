package pagination

import (
	"context"
	"errors"
	"iter"
)

// Done is returned by Next once the last window has been consumed.
var Done = errors.New("no more items in page chain")

// walker is the state shared by both iterators: the window currently held and
// the position of the next unread item in it. Earlier windows are not kept.
type walker[T any, W window[T]] struct {
	getter Getter
	kind   string
	page   W
	items  []T
	pos    int
}

func newWalker[T any, W window[T]](page W, c Getter, kind string) walker[T, W] {
	return walker[T, W]{
		getter: c,
		kind:   kind,
		page:   page,
		items:  page.elems(),
	}
}

// Next returns the next item of the chain. Buffered items are returned without
// I/O; the next window is fetched only when the current one is used up, and
// empty windows are skipped. When that fetch fails the error is returned and
// the iterator stays where it was, so calling Next again retries the same link.
// At the end of the chain Next returns Done.
func (w *walker[T, W]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		if w.pos < len(w.items) {
			item := w.items[w.pos]
			w.pos++
			return item, nil
		}

		link := w.page.nextLink()
		if link == nil {
			return zero, Done
		}

		next, err := follow[W](ctx, w.getter, *link, w.kind)
		if err != nil {
			return zero, err
		}
		w.page = next
		w.items = next.elems()
		w.pos = 0
	}
}

// All adapts Next to a range-over-func sequence. Errors are yielded as
// (zero, err) and do not end the sequence; break out of the loop to stop.
// The sequence also ends once ctx is done.
func (w *walker[T, W]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			item, err := w.Next(ctx)
			if errors.Is(err, Done) {
				return
			}
			if !yield(item, err) {
				return
			}
			if err != nil && ctx.Err() != nil {
				return
			}
		}
	}
}

// Collect drains the remaining items. Unlike FetchAll on a page, it stops at
// the first error and returns the items read so far along with it.
func (w *walker[T, W]) Collect(ctx context.Context) ([]T, error) {
	var out []T
	for {
		item, err := w.Next(ctx)
		if errors.Is(err, Done) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
}

// Current returns the window the iterator is reading from.
func (w *walker[T, W]) Current() W {
	return w.page
}

// PageIter lazily walks a chain of offset pages.
// It must not be used from more than one goroutine at a time.
type PageIter[T any] struct {
	walker[T, Page[T]]
}

// NewPageIter returns an iterator positioned at the first item of page.
func NewPageIter[T any](page Page[T], c Getter) *PageIter[T] {
	return &PageIter[T]{walker: newWalker[T](page, c, kindOffset)}
}

// CursorIter lazily walks a chain of cursor pages.
// It must not be used from more than one goroutine at a time.
type CursorIter[T any] struct {
	walker[T, CursorPage[T]]
}

// NewCursorIter returns an iterator positioned at the first item of page.
func NewCursorIter[T any](page CursorPage[T], c Getter) *CursorIter[T] {
	return &CursorIter[T]{walker: newWalker[T](page, c, kindCursor)}
}
