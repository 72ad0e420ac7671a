package services

import (
	"context"
	"errors"

	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
	"github.com/comitanigiacomo/kanso-habits/internal/core/progress"
)

var (
	ErrSummaryCacheMiss = errors.New("summary cache miss")
	// ErrStaleSummary is returned by Set when the month was invalidated after
	// the summary's generation was read.
	ErrStaleSummary = errors.New("summary computed from an older generation")
)

// SummaryCache stores computed month summaries per user.
//
// Every invalidation bumps the month's generation. Callers read Generation
// before loading the records a summary is computed from and stamp it on the
// summary; Set refuses summaries of an older generation, and a cached summary
// whose generation differs from the current one must not be served.
type SummaryCache interface {
	Generation(ctx context.Context, userID string, key calendar.MonthKey) (int64, error)
	// Get returns ErrSummaryCacheMiss when nothing is stored.
	Get(ctx context.Context, userID string, key calendar.MonthKey) (*progress.Summary, error)
	Set(ctx context.Context, userID string, key calendar.MonthKey, summary *progress.Summary) error
	Invalidate(ctx context.Context, userID string, key calendar.MonthKey) error
	// InvalidateUser drops every month of the user, e.g. after a schedule change.
	InvalidateUser(ctx context.Context, userID string) error
}

type NoopSummaryCache struct{}

func (NoopSummaryCache) Generation(context.Context, string, calendar.MonthKey) (int64, error) {
	return 0, nil
}

func (NoopSummaryCache) Get(context.Context, string, calendar.MonthKey) (*progress.Summary, error) {
	return nil, ErrSummaryCacheMiss
}

func (NoopSummaryCache) Set(context.Context, string, calendar.MonthKey, *progress.Summary) error {
	return nil
}

func (NoopSummaryCache) Invalidate(context.Context, string, calendar.MonthKey) error { return nil }

func (NoopSummaryCache) InvalidateUser(context.Context, string) error { return nil }
