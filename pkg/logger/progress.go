package logger

import (
	"sync"
	"time"
)

// PageProgress tracks extraction of the pages of one bill. It is safe for
// concurrent use by page workers.
type PageProgress struct {
	logger    Logger
	bill      string
	total     int
	done      int
	failed    int
	startTime time.Time
	mutex     sync.Mutex
}

// NewPageProgress creates a tracker for a bill with the given page count.
func NewPageProgress(bill string, total int, logger Logger) *PageProgress {
	if logger == nil {
		logger = GetGlobalLogger()
	}

	p := &PageProgress{
		logger:    logger.WithComponent("progress"),
		bill:      bill,
		total:     total,
		startTime: time.Now(),
	}

	p.logger.WithFields(Fields{
		"bill":  bill,
		"pages": total,
	}).Debug("Starting page extraction")

	return p
}

// PageDone records a page that produced the given number of records.
func (p *PageProgress) PageDone(index, records int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.done++
	p.logger.WithFields(Fields{
		"bill":    p.bill,
		"page":    index,
		"records": records,
		"done":    p.done,
		"total":   p.total,
	}).Debug("Page extracted")
}

// PageFailed records a page whose extraction failed.
func (p *PageProgress) PageFailed(index int, err error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.failed++
	p.logger.WithError(err).WithFields(Fields{
		"bill": p.bill,
		"page": index,
	}).Warn("Page extraction failed")
}

// Complete logs final statistics and returns them.
func (p *PageProgress) Complete() PageStats {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	stats := PageStats{
		Bill:     p.bill,
		Total:    p.total,
		Done:     p.done,
		Failed:   p.failed,
		Duration: time.Since(p.startTime),
	}

	p.logger.WithFields(Fields{
		"bill":     stats.Bill,
		"total":    stats.Total,
		"done":     stats.Done,
		"failed":   stats.Failed,
		"duration": stats.Duration.String(),
	}).Info("Page extraction completed")

	return stats
}

// PageStats contains page extraction statistics
type PageStats struct {
	Bill     string        `json:"bill"`
	Total    int           `json:"total"`
	Done     int           `json:"done"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// TimedOperation executes a function and logs timing information
func TimedOperation(operation string, logger Logger, fn func() error) error {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	start := time.Now()

	err := fn()

	fields := Fields{
		"operation": operation,
		"duration":  time.Since(start).String(),
	}
	if err != nil {
		fields["status"] = "error"
		logger.WithError(err).WithFields(fields).Error("Operation failed")
	} else {
		fields["status"] = "success"
		logger.WithFields(fields).Info("Operation completed successfully")
	}

	return err
}
