// Package channels manages the subscribed channel list and the cache of
// channel display names.
package channels

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gauthierbraillon/subfeed/internal/store"
)

var (
	ErrAlreadySubscribed = errors.New("already subscribed to channel")
	ErrNotSubscribed     = errors.New("not subscribed to channel")
	ErrInvalidID         = errors.New("invalid channel id")
)

// Subscriptions is the ordered list of subscribed channel ids, stored one per
// line.
type Subscriptions struct {
	doc *store.Document[[]string]
}

func NewSubscriptions(path string) *Subscriptions {
	return &Subscriptions{doc: store.NewDocument[[]string](path, store.LinesCodec{})}
}

// List returns the subscribed ids in insertion order.
func (s *Subscriptions) List(ctx context.Context) ([]string, error) {
	ids, err := s.doc.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}
	return ids, nil
}

// Add appends id to the list.
func (s *Subscriptions) Add(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, " \t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	_, err := s.doc.Update(ctx, func(ids []string) ([]string, error) {
		if slices.Contains(ids, id) {
			return ids, fmt.Errorf("%w: %s", ErrAlreadySubscribed, id)
		}
		return append(ids, id), nil
	})
	return err
}

// Remove deletes id from the list.
func (s *Subscriptions) Remove(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	_, err := s.doc.Update(ctx, func(ids []string) ([]string, error) {
		i := slices.Index(ids, id)
		if i < 0 {
			return ids, fmt.Errorf("%w: %s", ErrNotSubscribed, id)
		}
		return slices.Delete(ids, i, i+1), nil
	})
	return err
}

// RemoveAt deletes the channel at the 1-based position shown by List and
// returns its id.
func (s *Subscriptions) RemoveAt(ctx context.Context, index int) (string, error) {
	var removed string
	_, err := s.doc.Update(ctx, func(ids []string) ([]string, error) {
		if index < 1 || index > len(ids) {
			return ids, fmt.Errorf("%w: no channel at position %d", ErrNotSubscribed, index)
		}
		removed = ids[index-1]
		return slices.Delete(ids, index-1, index), nil
	})
	if err != nil {
		return "", err
	}
	return removed, nil
}
