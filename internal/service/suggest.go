package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/natep/cinesearch/internal/cache"
	"github.com/natep/cinesearch/internal/domain"
)

const (
	defaultSuggestLimit = 10
	maxSuggestLimit     = 25
)

// SuggestResponse carries type-ahead title suggestions.
type SuggestResponse struct {
	Suggestions []string `json:"suggestions"`
}

// Suggest returns catalog titles matching the prefix, for type-ahead.
// Prefix matches rank before mid-title matches, ties alphabetical.
// Suggestions live in their own cache namespace with a longer TTL than
// full searches, since the title set changes far more slowly than result
// rankings do.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - prefix: partial title text, required.
//   - limit: maximum suggestions, defaulted and capped.
// Returns:
//   - *SuggestResponse: distinct matching titles.
//   - error: ErrEmptyQuery on blank prefix, or a store failure.
func (s *SearchService) Suggest(ctx context.Context, prefix string, limit int) (*SuggestResponse, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = defaultSuggestLimit
	}
	if limit > maxSuggestLimit {
		limit = maxSuggestLimit
	}

	key := cache.Key(prefix, domain.SearchTypeSuggest, map[string]string{
		"limit": strconv.Itoa(limit),
	})
	if s.cache != nil {
		if cached, ok := s.cache.Get(cache.NamespaceAutocomplete, key); ok {
			if resp, ok := cached.(*SuggestResponse); ok {
				return resp, nil
			}
		}
	}

	candidates, err := s.movies.TextCandidates(ctx, prefix, s.cfg.VectorCandidates)
	if err != nil {
		return nil, fmt.Errorf("suggest lookup failed: %w", err)
	}

	lowered := strings.ToLower(prefix)
	seen := make(map[string]struct{}, len(candidates))
	var prefixed, contained []string
	for i := range candidates {
		title := candidates[i].Title
		lt := strings.ToLower(title)
		if !strings.Contains(lt, lowered) {
			continue
		}
		if _, dup := seen[lt]; dup {
			continue
		}
		seen[lt] = struct{}{}
		if strings.HasPrefix(lt, lowered) {
			prefixed = append(prefixed, title)
		} else {
			contained = append(contained, title)
		}
	}
	sort.Strings(prefixed)
	sort.Strings(contained)

	suggestions := make([]string, 0, len(prefixed)+len(contained))
	suggestions = append(suggestions, prefixed...)
	suggestions = append(suggestions, contained...)
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}

	resp := &SuggestResponse{Suggestions: suggestions}
	if s.cache != nil {
		s.cache.Set(cache.NamespaceAutocomplete, key, resp)
	}
	return resp, nil
}
