package engine

import (
	"context"
	"errors"

	"github.com/example/pricelist/internal/domain"
)

// Summary is advisory text about a draft. Stale is set when the draft
// changed while the summarizer was running.
type Summary struct {
	Text  string `json:"text"`
	Stale bool   `json:"stale"`
}

var ErrNoSummarizer = errors.New("summarizer not configured")

// SummarizeDraft snapshots the draft and asks the summarizer about it
// without holding the engine lock, so other operations proceed meanwhile.
func (e *Engine) SummarizeDraft(ctx context.Context) (Summary, error) {
	if e.summarizer == nil {
		return Summary{}, domain.NewExternalServiceError("summarizer", ErrNoSummarizer)
	}
	e.mu.Lock()
	snapshot := e.draft.Derive(e.catalog)
	version := e.draft.Version()
	e.mu.Unlock()

	if snapshot.Empty() {
		return Summary{}, domain.ErrEmptyDraft
	}

	text, err := e.summarizer.Summarize(ctx, snapshot)
	if err != nil {
		if domain.IsExternalServiceError(err) {
			return Summary{}, err
		}
		return Summary{}, domain.NewExternalServiceError("summarizer", err)
	}

	e.mu.Lock()
	stale := e.draft.Version() != version
	e.mu.Unlock()
	return Summary{Text: text, Stale: stale}, nil
}
