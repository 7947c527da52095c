// Package pagination walks the paginated list results of the Web API.
//
// Two window shapes exist upstream: offset pages (Page) that carry next and
// previous links, and cursor pages (CursorPage) that carry a next link plus
// informational cursors. Both are consumed the same two ways:
//
//	// eager: every item of every window, or the first error
//	tracks, err := page.FetchAll(ctx, client)
//
//	// lazy: one window in memory, fetched when the previous one is used up
//	it := pagination.NewPageIter(*page, client)
//	for track, err := range it.All(ctx) {
//		if err != nil {
//			// retry by continuing, or break
//			break
//		}
//		_ = track
//	}
//
// Links are followed exactly as the server returned them. A window with a nil
// next link ends the chain, whatever its cursors say. Nothing here retries,
// throttles or caches; that is the Getter's job (see pkg/client).
//
// Drainer runs several independent chains concurrently with a bounded number of
// workers, each chain still walked by a single goroutine.
package pagination
