package channels

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/gauthierbraillon/subfeed/internal/logging"
	"github.com/gauthierbraillon/subfeed/internal/store"
)

// NameResolver looks up display names for channel ids.
type NameResolver interface {
	ResolveChannelNames(ctx context.Context, ids []string) (map[string]string, error)
}

// NameCache maps channel ids to display names, persisted in its own document.
type NameCache struct {
	doc      *store.Document[map[string]string]
	resolver NameResolver
	logger   *slog.Logger

	mu    sync.RWMutex
	names map[string]string
}

// NewNameCache returns a cache backed by path. resolver may be nil, in which
// case only stored names are available.
func NewNameCache(path string, resolver NameResolver, logger *slog.Logger) *NameCache {
	return &NameCache{
		doc: store.NewDocument[map[string]string](path, store.JSONCodec[map[string]string]{
			New: func() map[string]string { return map[string]string{} },
		}),
		resolver: resolver,
		logger:   logging.NewComponentLogger(logger, "channels"),
		names:    map[string]string{},
	}
}

// Load reads the stored names into memory.
func (n *NameCache) Load(ctx context.Context) error {
	names, err := n.doc.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load channel names: %w", err)
	}
	n.mu.Lock()
	n.names = names
	n.mu.Unlock()
	return nil
}

// Names returns display names for ids, resolving and persisting any that are
// not cached yet. If resolution fails the cached subset is returned with the
// error.
func (n *NameCache) Names(ctx context.Context, ids []string) (map[string]string, error) {
	if err := n.Load(ctx); err != nil {
		return nil, err
	}

	result := make(map[string]string, len(ids))
	var missing []string
	n.mu.RLock()
	for _, id := range ids {
		if name, ok := n.names[id]; ok {
			result[id] = name
		} else {
			missing = append(missing, id)
		}
	}
	n.mu.RUnlock()

	if len(missing) == 0 || n.resolver == nil {
		return result, nil
	}

	resolved, err := n.resolver.ResolveChannelNames(ctx, missing)
	if len(resolved) > 0 {
		stored, saveErr := n.doc.Update(ctx, func(current map[string]string) (map[string]string, error) {
			if current == nil {
				current = map[string]string{}
			}
			maps.Copy(current, resolved)
			return current, nil
		})
		if saveErr != nil {
			return result, fmt.Errorf("failed to save channel names: %w", saveErr)
		}
		n.mu.Lock()
		n.names = stored
		n.mu.Unlock()
		maps.Copy(result, resolved)
	}
	if err != nil {
		n.logger.Warn("channel name lookup failed",
			logging.Int("missing", len(missing)),
			logging.Error(err),
		)
		return result, fmt.Errorf("failed to resolve channel names: %w", err)
	}
	return result, nil
}

// DisplayName returns the cached name for id, or id itself.
func (n *NameCache) DisplayName(id string) string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if name, ok := n.names[id]; ok && name != "" {
		return name
	}
	return id
}
