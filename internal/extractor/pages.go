package extractor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"bill-reconciliation-service/internal/models"
	"bill-reconciliation-service/pkg/errors"
	"bill-reconciliation-service/pkg/logger"
)

// DefaultMaxConcurrentPages bounds page workers when no limit is given.
const DefaultMaxConcurrentPages = 4

// Page is one page of a bill. Text pages carry their content in Text;
// image pages carry the encoded image and its MIME type.
type Page struct {
	Index    int
	Text     string
	Image    []byte
	MIMEType string
}

// IsImage reports whether the page still needs a vision provider.
func (p Page) IsImage() bool {
	return len(p.Image) > 0
}

// PageFunc extracts the records of a single page.
type PageFunc func(ctx context.Context, page Page) ([]*models.Record, error)

// PageOptions tunes ExtractPages.
type PageOptions struct {
	Bill          string
	MaxConcurrent int
	Logger        logger.Logger
}

// ExtractPages runs fn over every page with bounded concurrency and joins
// the records strictly in page index order. A failing page does not stop
// the others; its error is returned in the failures slice. The error
// result is reserved for invalid page indices and cancellation.
func ExtractPages(ctx context.Context, pages []Page, fn PageFunc, opts PageOptions) ([]*models.Record, []*errors.BillError, error) {
	ordered, err := orderPages(pages)
	if err != nil {
		return nil, nil, err
	}

	maxConcurrency := opts.MaxConcurrent
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrentPages
	}

	progress := logger.NewPageProgress(opts.Bill, len(ordered), opts.Logger)

	semaphore := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	results := make([][]*models.Record, len(ordered))
	var failures []*errors.BillError

	for slot, page := range ordered {
		wg.Add(1)

		go func(slot int, page Page) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-semaphore }()

			records, err := fn(ctx, page)
			if err != nil {
				progress.PageFailed(page.Index, err)
				failure := errors.WrapIfNeeded(err, errors.CategoryParse, errors.CodeInvalidFormat,
					fmt.Sprintf("page %d could not be extracted", page.Index)).
					WithContext("page", page.Index)

				mu.Lock()
				failures = append(failures, failure)
				mu.Unlock()
				return
			}

			results[slot] = records
			progress.PageDone(page.Index, len(records))
		}(slot, page)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, failures, err
	}

	sort.Slice(failures, func(i, j int) bool {
		return pageOf(failures[i]) < pageOf(failures[j])
	})

	var all []*models.Record
	for _, records := range results {
		all = append(all, records...)
	}

	progress.Complete()
	return all, failures, nil
}

// orderPages validates indices and returns the pages sorted by index.
func orderPages(pages []Page) ([]Page, error) {
	seen := make(map[int]bool, len(pages))
	for _, page := range pages {
		if page.Index < 0 {
			return nil, errors.ValidationError(errors.CodeOutOfRange, "page_index", page.Index, nil)
		}
		if seen[page.Index] {
			return nil, errors.ValidationError(errors.CodeDuplicate, "page_index", page.Index, nil)
		}
		seen[page.Index] = true
	}

	ordered := make([]Page, len(pages))
	copy(ordered, pages)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Index < ordered[j].Index
	})
	return ordered, nil
}

func pageOf(err *errors.BillError) int {
	if idx, ok := err.Context["page"].(int); ok {
		return idx
	}
	return -1
}
