package complexity

import (
	"context"
	"sync"
	"time"

	"github.com/ShayCichocki/gantry/pkg/models"
)

// AnalyzeBatch scores every selected task and assembles the report.
// Tasks are processed by a fixed-size worker pool so research calls
// cannot fan out unbounded, and each task is scored in isolation: a
// failed research call degrades that one row, never the batch. Rows
// come back in selection order regardless of completion order.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, c *models.Collection, sel Selection, opts Options) (*models.ComplexityReport, error) {
	tasks, err := sel.Resolve(c)
	if err != nil {
		return nil, err
	}

	entries := make([]models.ComplexityEntry, len(tasks))
	workers := a.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				entries[idx] = a.AnalyzeTask(ctx, tasks[idx], opts)
			}
		}()
	}

feed:
	for i := range tasks {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &models.ComplexityReport{
		GeneratedAt: time.Now().UTC(),
		Threshold:   opts.threshold(),
		Research:    opts.Research,
		Entries:     entries,
	}
	report.Summarize()
	return report, nil
}
