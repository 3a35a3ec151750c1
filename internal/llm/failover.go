package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"inventrack/internal/domain"
	"inventrack/internal/retry"
)

// FailoverModel tries a primary model and then each fallback in order. A
// model counts as failed only when it errors before producing any output;
// a turn that has started streaming is never switched to another model.
type FailoverModel struct {
	models []domain.ChatModel
	logger *slog.Logger
}

// NewFailover returns primary when there are no usable fallbacks, otherwise
// a FailoverModel. Nil fallbacks are skipped. Panics if primary is nil.
func NewFailover(logger *slog.Logger, primary domain.ChatModel, fallbacks ...domain.ChatModel) domain.ChatModel {
	if primary == nil {
		panic("llm: primary model must not be nil")
	}
	models := []domain.ChatModel{primary}
	for _, fb := range fallbacks {
		if fb != nil {
			models = append(models, fb)
		}
	}
	if len(models) == 1 {
		return primary
	}
	return &FailoverModel{models: models, logger: logger}
}

func (f *FailoverModel) log() *slog.Logger {
	if f.logger != nil {
		return f.logger
	}
	return slog.Default()
}

// Stream implements domain.ChatModel.
func (f *FailoverModel) Stream(ctx context.Context, req domain.ModelRequest) (<-chan domain.ModelChunk, error) {
	var errs []error
	for i, m := range f.models {
		ch, err := retry.StartStream(ctx, m, req)
		if err == nil {
			return ch, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
		if i+1 < len(f.models) {
			f.log().Warn("model failed, trying fallback",
				"provider_index", i,
				"error", err,
			)
		}
	}
	return nil, fmt.Errorf("llm: all %d models failed: %w", len(errs), errors.Join(errs...))
}

var _ domain.ChatModel = (*FailoverModel)(nil)
