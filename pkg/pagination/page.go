package pagination

import (
	"context"
	"errors"

	"github.com/Sternrassler/spotify-client/pkg/logging"
)

var (
	// ErrNoNextPage is returned when following a next link the window does not have.
	ErrNoNextPage = errors.New("page has no next link")

	// ErrNoPreviousPage is returned when following a previous link the window does not have.
	ErrNoPreviousPage = errors.New("page has no previous link")
)

// Getter issues an authenticated GET and decodes the JSON body into out.
// params is nil, a url.Values, or a struct with `url` tags.
// The same Getter is reused for every window of a chain.
type Getter interface {
	Get(ctx context.Context, rawURL string, params any, out any) error
}

const (
	kindOffset = "offset"
	kindCursor = "cursor"
)

// Cursor mirrors the positional markers of a cursor page. It is informational:
// traversal only ever follows CursorPage.Next.
type Cursor struct {
	After  *string `json:"after"`
	Before *string `json:"before"`
}

// Page is one offset-paginated window. A nil Next or Previous marks the end of
// the chain in that direction.
type Page[T any] struct {
	Href     string  `json:"href"`
	Limit    int     `json:"limit"`
	Next     *string `json:"next"`
	Offset   int     `json:"offset"`
	Previous *string `json:"previous"`
	Total    int     `json:"total"`
	Items    []T     `json:"items"`
}

// CursorPage is one cursor-paginated window.
type CursorPage[T any] struct {
	Href    string  `json:"href"`
	Limit   int     `json:"limit"`
	Next    *string `json:"next"`
	Cursors Cursor  `json:"cursors"`
	Total   *int    `json:"total,omitempty"`
	Items   []T     `json:"items"`
}

// window is what a chain walk needs from either page shape.
type window[T any] interface {
	nextLink() *string
	elems() []T
}

func (p Page[T]) nextLink() *string       { return p.Next }
func (p Page[T]) elems() []T              { return p.Items }
func (p CursorPage[T]) nextLink() *string { return p.Next }
func (p CursorPage[T]) elems() []T        { return p.Items }

// HasNext reports whether the window links to a following one.
func (p *Page[T]) HasNext() bool { return p.Next != nil }

// HasPrevious reports whether the window links to a preceding one.
func (p *Page[T]) HasPrevious() bool { return p.Previous != nil }

// GetNext fetches the window after p. p itself is left untouched, so calling
// it twice performs two fetches.
func (p *Page[T]) GetNext(ctx context.Context, c Getter) (*Page[T], error) {
	if p.Next == nil {
		return nil, ErrNoNextPage
	}
	next, err := follow[Page[T]](ctx, c, *p.Next, kindOffset)
	if err != nil {
		return nil, err
	}
	return &next, nil
}

// GetPrevious fetches the window before p.
func (p *Page[T]) GetPrevious(ctx context.Context, c Getter) (*Page[T], error) {
	if p.Previous == nil {
		return nil, ErrNoPreviousPage
	}
	prev, err := follow[Page[T]](ctx, c, *p.Previous, kindOffset)
	if err != nil {
		return nil, err
	}
	return &prev, nil
}

// FetchAll returns the items of p followed by the items of every later window,
// in server order. Any failed fetch discards what was collected and returns the error.
func (p Page[T]) FetchAll(ctx context.Context, c Getter) ([]T, error) {
	return drain[T](ctx, p, c, kindOffset)
}

// Iter returns a lazy iterator starting at p.
func (p Page[T]) Iter(c Getter) *PageIter[T] {
	return NewPageIter(p, c)
}

// HasNext reports whether the window links to a following one.
func (p *CursorPage[T]) HasNext() bool { return p.Next != nil }

// GetNext fetches the window after p.
func (p *CursorPage[T]) GetNext(ctx context.Context, c Getter) (*CursorPage[T], error) {
	if p.Next == nil {
		return nil, ErrNoNextPage
	}
	next, err := follow[CursorPage[T]](ctx, c, *p.Next, kindCursor)
	if err != nil {
		return nil, err
	}
	return &next, nil
}

// FetchAll returns the items of p followed by the items of every later window.
func (p CursorPage[T]) FetchAll(ctx context.Context, c Getter) ([]T, error) {
	return drain[T](ctx, p, c, kindCursor)
}

// Iter returns a lazy iterator starting at p.
func (p CursorPage[T]) Iter(c Getter) *CursorIter[T] {
	return NewCursorIter(p, c)
}

// follow fetches and decodes the window behind link.
func follow[W any](ctx context.Context, c Getter, link string, kind string) (W, error) {
	logger := logging.FromContext(ctx)
	logger.Trace().Str("kind", kind).Str("url", link).Msg("Following page link")

	var w W
	if err := c.Get(ctx, link, nil, &w); err != nil {
		pageFetchErrors.WithLabelValues(kind).Inc()
		logger.Debug().Err(err).Str("kind", kind).Str("url", link).Msg("Page fetch failed")
		return w, err
	}

	pagesFetched.WithLabelValues(kind).Inc()
	return w, nil
}

// drain walks the chain starting at first until a window without next link.
func drain[T any, W window[T]](ctx context.Context, first W, c Getter, kind string) ([]T, error) {
	items := make([]T, 0, len(first.elems()))
	items = append(items, first.elems()...)

	pages := 1
	cur := first
	for link := cur.nextLink(); link != nil; link = cur.nextLink() {
		next, err := follow[W](ctx, c, *link, kind)
		if err != nil {
			drains.WithLabelValues(kind, "error").Inc()
			return nil, err
		}
		items = append(items, next.elems()...)
		cur = next
		pages++
	}

	drains.WithLabelValues(kind, "ok").Inc()
	logging.FromContext(ctx).Debug().
		Str("kind", kind).
		Int("pages", pages).
		Int("items", len(items)).
		Msg("Drained page chain")
	return items, nil
}
