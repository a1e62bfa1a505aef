package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/pthm-cable/gridsoup/config"
)

// New builds the base provider selected by cfg.Provider.Kind.
func New(ctx context.Context, cfg *config.Config, seed int64) (Provider, error) {
	p := cfg.Provider
	g := cfg.Genome
	switch p.Kind {
	case "", "random":
		return NewRandom(seed, g.GeneLength, g.NumGenes), nil
	case "file":
		return NewFile(p.Path)
	case "server":
		timeout := time.Duration(p.TimeoutSec * float64(time.Second))
		return NewServer(ctx, p.URL, p.SimID, p.BufferHalfSize, timeout)
	case "cache":
		return NewCache(seed, p.CacheSize, p.CalculationsPerUpdate, g.GeneLength*g.NumGenes), nil
	case "sqlite":
		store := NewSQLiteStore(p.Path)
		if err := store.Init(ctx); err != nil {
			return nil, fmt.Errorf("opening genome store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported provider kind: %s", p.Kind)
	}
}

// CloseIfSupported closes providers that hold resources.
func CloseIfSupported(p Provider) error {
	closer, ok := p.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
