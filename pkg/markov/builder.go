package markov

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// LoadFunc returns the corpus sentences a Chain is built from.
type LoadFunc func(ctx context.Context) ([]string, error)

// Builder owns a lazily built Chain. The first call to Get loads the corpus and
// builds the chain; concurrent callers wait for that same build. The chain is
// then reused until Reset discards it.
type Builder struct {
	load      LoadFunc
	tokenizer Tokenizer
	logger    *slog.Logger

	mu    sync.RWMutex
	chain *Chain
	epoch uint64 // bumped by Reset so stale in-flight builds are not stored

	group singleflight.Group
}

// NewBuilder creates a Builder that loads its corpus with load. A nil tokenizer
// selects NewDefaultTokenizer.
func NewBuilder(load LoadFunc, tokenizer Tokenizer) *Builder {
	if tokenizer == nil {
		tokenizer = NewDefaultTokenizer()
	}
	return &Builder{
		load:      load,
		tokenizer: tokenizer,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for the Builder and the chains it builds. By
// default, all logs are discarded.
func (b *Builder) SetLogger(logger *slog.Logger) {
	if logger != nil {
		b.logger = logger
	}
}

// Get returns the cached chain, building it first if needed. A failing or
// missing loader produces an empty chain, which is cached like any other.
func (b *Builder) Get(ctx context.Context) *Chain {
	b.mu.RLock()
	chain := b.chain
	b.mu.RUnlock()
	if chain != nil {
		return chain
	}

	v, _, _ := b.group.Do("chain", func() (any, error) {
		b.mu.RLock()
		cached, epoch := b.chain, b.epoch
		b.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		// The build outlives the first caller's cancellation.
		built := b.build(context.WithoutCancel(ctx))

		b.mu.Lock()
		defer b.mu.Unlock()
		if b.epoch == epoch {
			b.chain = built
		}
		return built, nil
	})
	return v.(*Chain)
}

// Reset discards the cached chain. The next Get rebuilds it from a fresh load.
func (b *Builder) Reset() {
	b.mu.Lock()
	b.chain = nil
	b.epoch++
	b.mu.Unlock()
	b.group.Forget("chain")
}

// Import replaces the cached chain with one decoded from a JSON export. The
// replacement survives until the next Reset. Builds already in flight do not
// overwrite it.
func (b *Builder) Import(r io.Reader) (*Chain, error) {
	chain, err := ImportChain(r, b.tokenizer)
	if err != nil {
		return nil, err
	}
	chain.SetLogger(b.logger)

	b.mu.Lock()
	b.chain = chain
	b.epoch++
	b.mu.Unlock()
	b.group.Forget("chain")

	stats := chain.Stats()
	b.logger.Info("Markov chain imported",
		slog.Int("sentences", stats.Sentences),
		slog.Int("vocab_size", stats.VocabSize),
		slog.Int("transitions", stats.Transitions),
	)
	return chain, nil
}

// Generate builds the chain if needed and generates from it.
func (b *Builder) Generate(ctx context.Context, prompt string, opts ...GenerateOption) Result {
	return b.Get(ctx).Generate(ctx, prompt, opts...)
}

func (b *Builder) build(ctx context.Context) *Chain {
	start := time.Now()

	var sentences []string
	if b.load != nil {
		var err error
		sentences, err = b.load(ctx)
		if err != nil {
			b.logger.WarnContext(ctx, "Corpus load failed, using an empty chain",
				slog.String("error", err.Error()),
			)
			sentences = nil
		}
	}

	chain := Build(sentences, b.tokenizer)
	chain.SetLogger(b.logger)

	stats := chain.Stats()
	b.logger.InfoContext(ctx, "Markov chain built",
		slog.Int("sentences", stats.Sentences),
		slog.Int("vocab_size", stats.VocabSize),
		slog.Int("transitions", stats.Transitions),
		slog.Duration("took", time.Since(start)),
	)
	return chain
}
