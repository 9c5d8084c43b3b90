package domain

import "context"

// BatchItem is a block queued for extraction.
type BatchItem struct {
	UID  string
	Text string
}

// BatchResult is the outcome of one batch item. Err is nil on success.
type BatchResult struct {
	UID string
	Err error
}

// BatchReport collects the results of a batch run in input order.
type BatchReport struct {
	Results []BatchResult
}

// Failed returns the number of items that did not extract.
func (r BatchReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// ExtractBatch extracts each item in turn. A failing item is logged and does
// not stop the remaining ones.
func (e *Extractor) ExtractBatch(ctx context.Context, items []BatchItem) BatchReport {
	report := BatchReport{Results: make([]BatchResult, 0, len(items))}
	for _, item := range items {
		err := e.retry.Do(ctx, func() error {
			return e.ExtractPost(ctx, item.UID, item.Text)
		})
		if err != nil {
			e.logger.Error("batch item failed", "uid", item.UID, "error", err)
		}
		report.Results = append(report.Results, BatchResult{UID: item.UID, Err: err})
	}
	e.logger.Info("batch complete", "items", len(items), "failed", report.Failed())
	return report
}

// ExtractTagged extracts every block referencing the configured auto-extract tag.
func (e *Extractor) ExtractTagged(ctx context.Context) (BatchReport, error) {
	settings, err := e.host.Settings(ctx)
	if err != nil {
		return BatchReport{}, err
	}

	items, err := e.host.TaggedBlocks(ctx, settings.AutoExtractTag)
	if err != nil {
		return BatchReport{}, err
	}
	e.logger.Debug("found tagged blocks", "tag", settings.AutoExtractTag, "count", len(items))

	return e.ExtractBatch(ctx, items), nil
}

// AutoExtract runs ExtractTagged when the auto-extract setting is on.
func (e *Extractor) AutoExtract(ctx context.Context) (BatchReport, error) {
	settings, err := e.host.Settings(ctx)
	if err != nil {
		return BatchReport{}, err
	}
	if !settings.AutoExtract {
		e.logger.Debug("auto extract disabled")
		return BatchReport{}, nil
	}
	return e.ExtractTagged(ctx)
}
