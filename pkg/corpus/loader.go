package corpus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// Options selects where the corpus comes from.
type Options struct {
	Dataset string        // URL of a CSV file; empty selects the default corpus
	Column  string        // CSV column holding the texts
	MaxRows int           // cap on rows read; zero or less means no limit
	Timeout time.Duration // download timeout
	MaxAge  time.Duration // how long a cached copy stays fresh; zero means forever
}

// Loader resolves Options to a list of sentences. It never fails: every
// problem with a remote dataset falls back to a cached copy or to Default.
type Loader struct {
	opts    Options
	fetcher *Fetcher
	store   *Store
	logger  *slog.Logger
}

// NewLoader creates a Loader. store may be nil to disable caching.
func NewLoader(opts Options, store *Store) *Loader {
	return &Loader{
		opts:    opts,
		fetcher: NewFetcher(opts.Timeout),
		store:   store,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for the Loader. By default, all logs are discarded.
func (l *Loader) SetLogger(logger *slog.Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// Load returns the configured corpus. The error is always nil; the signature
// matches markov.LoadFunc.
func (l *Loader) Load(ctx context.Context) ([]string, error) {
	if l.opts.Dataset == "" || l.opts.Column == "" {
		l.logger.InfoContext(ctx, "No dataset configured, using default corpus")
		return Default(), nil
	}
	if !IsRemote(l.opts.Dataset) {
		l.logger.WarnContext(ctx, "Dataset is not an http(s) URL, using default corpus",
			slog.String("dataset", l.opts.Dataset),
		)
		return Default(), nil
	}

	key := l.opts.Dataset + "#" + l.opts.Column
	var cached []string
	if l.store != nil {
		sentences, fetchedAt, err := l.store.Load(ctx, key)
		switch {
		case err == nil && (l.opts.MaxAge <= 0 || time.Since(fetchedAt) < l.opts.MaxAge):
			l.logger.InfoContext(ctx, "Loaded dataset from cache",
				slog.String("dataset", l.opts.Dataset),
				slog.Int("sentences", len(sentences)),
			)
			return sentences, nil
		case err == nil:
			cached = sentences
		case !errors.Is(err, ErrNotCached):
			l.logger.WarnContext(ctx, "Failed to read corpus cache", slog.String("error", err.Error()))
		}
	}

	sentences, err := l.fetcher.FetchColumn(ctx, l.opts.Dataset, l.opts.Column, l.opts.MaxRows)
	if err == nil && len(sentences) == 0 {
		err = errors.New("dataset column has no text")
	}
	if err != nil {
		if len(cached) > 0 {
			l.logger.WarnContext(ctx, "Dataset fetch failed, using stale cache",
				slog.String("dataset", l.opts.Dataset),
				slog.String("error", err.Error()),
			)
			return cached, nil
		}
		l.logger.WarnContext(ctx, "Dataset fetch failed, using default corpus",
			slog.String("dataset", l.opts.Dataset),
			slog.String("error", err.Error()),
		)
		return Default(), nil
	}

	l.logger.InfoContext(ctx, "Loaded dataset",
		slog.String("dataset", l.opts.Dataset),
		slog.String("column", l.opts.Column),
		slog.Int("sentences", len(sentences)),
	)

	if l.store != nil {
		if err = l.store.Save(ctx, key, sentences); err != nil {
			l.logger.WarnContext(ctx, "Failed to cache dataset", slog.String("error", err.Error()))
		}
	}
	return sentences, nil
}
