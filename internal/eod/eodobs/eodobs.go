package eodobs

import (
	"context"
	"time"

	"ai-trading-agent/internal/eod"
	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/trace"
)

type observableSummarizer struct {
	summarizer eod.Summarizer
}

var _ eod.Summarizer = (*observableSummarizer)(nil)

func Wrap(summarizer eod.Summarizer) eod.Summarizer {
	return &observableSummarizer{
		summarizer: summarizer,
	}
}

func (o *observableSummarizer) SummarizeDay(t time.Time) (string, error) {
	ctx := context.Background()
	ctx, span := trace.StartSpan(ctx, "eod.SummarizeDay")
	defer span.End()

	logger.Info(ctx, "Starting daily summary generation",
		"date", t.Format("2006-01-02"),
	)

	csvPath, err := o.summarizer.SummarizeDay(t)
	if err != nil {
		logger.ErrorWithErr(ctx, "Daily summary generation failed", err,
			"date", t.Format("2006-01-02"),
		)
		return "", err
	}

	if csvPath == "" {
		logger.Info(ctx, "No trades found for daily summary",
			"date", t.Format("2006-01-02"),
		)
		return "", nil
	}

	logger.Info(ctx, "Daily summary generated",
		"date", t.Format("2006-01-02"),
		"csv_path", csvPath,
	)

	return csvPath, nil
}

func (o *observableSummarizer) SummarizeToday() (string, error) {
	ctx := context.Background()
	ctx, span := trace.StartSpan(ctx, "eod.SummarizeToday")
	defer span.End()

	csvPath, err := o.summarizer.SummarizeToday()
	if err != nil {
		logger.ErrorWithErr(ctx, "Today's summary generation failed", err)
		return "", err
	}
	return csvPath, nil
}

func (o *observableSummarizer) ShouldRunNow() (bool, string) {
	ctx := context.Background()
	ctx, span := trace.StartSpan(ctx, "eod.ShouldRunNow")
	defer span.End()

	shouldRun, csvPath := o.summarizer.ShouldRunNow()

	logger.Debug(ctx, "Daily summary check completed",
		"should_run", shouldRun,
		"csv_path", csvPath,
	)

	return shouldRun, csvPath
}
