package recommend

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"log/slog"

	"bingeworthy/searchservice/internal/domain"
	"bingeworthy/searchservice/internal/inference"
	"bingeworthy/searchservice/internal/metrics"
)

var ErrInvalidPrompt = errors.New("prompt must be at least 3 characters")

const (
	minPromptLength = 3
	defaultMaxCount = 6
	maxLimit        = 20
)

// topListPattern recognizes list-style prompts like "top 3 horror movies",
// "best thrillers" or "greatest 10 comedies". The count is optional.
var topListPattern = regexp.MustCompile(`(?i)\b(?:top|best|greatest)\b(?:\s+(\d{1,2}))?`)

// mediaNounPattern anchors the list route to film and television prompts.
// A superlative alone ("best pizza places nearby") is not a catalog request.
var mediaNounPattern = regexp.MustCompile(`(?i)\b(?:movies?|shows?|series|films?|tv)\b`)

// Generator is the slice of the inference client the dispatcher depends on.
type Generator interface {
	Enabled() bool
	Recommend(ctx context.Context, prompt string, limit int) ([]inference.Item, error)
}

// Service turns free-text prompts into recommendation lists. The model is
// tried first when configured; every model failure falls back silently to
// the curated catalog so the endpoint never depends on inference uptime.
type Service struct {
	generator Generator
	log       *slog.Logger
	seed      uint64
}

type Option func(*Service)

func WithGenerator(generator Generator) Option {
	return func(s *Service) {
		s.generator = generator
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithSeed fixes the shuffle seed used on the default route.
func WithSeed(seed uint64) Option {
	return func(s *Service) {
		s.seed = seed
	}
}

func NewService(opts ...Option) *Service {
	svc := &Service{
		log:  slog.Default(),
		seed: 1,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Recommend resolves a free-text prompt into at most maxCount picks. A
// non-positive maxCount falls back to the default; a count spelled out in
// the prompt ("top 3 ...") overrides it.
func (s *Service) Recommend(ctx context.Context, prompt string, maxCount int) ([]domain.Recommendation, error) {
	prompt = strings.TrimSpace(prompt)
	if utf8.RuneCountInString(prompt) < minPromptLength {
		return nil, ErrInvalidPrompt
	}
	if maxCount <= 0 {
		maxCount = defaultMaxCount
	}
	if maxCount > maxLimit {
		maxCount = maxLimit
	}

	lowered := strings.ToLower(prompt)

	if limit, ok := topListCount(lowered, maxCount); ok {
		if s.generator != nil && s.generator.Enabled() {
			items, err := s.generator.Recommend(ctx, prompt, limit)
			if err == nil && len(items) > 0 {
				metrics.RecommendationRequestsTotal.WithLabelValues("inference").Inc()
				return fromInference(items), nil
			}
			metrics.InferenceFallbacksTotal.Inc()
			if err != nil {
				s.log.Debug("inference recommendation failed, using catalog",
					slog.String("prompt", prompt),
					slog.String("error", err.Error()),
				)
			}
		}
		metrics.RecommendationRequestsTotal.WithLabelValues("catalog").Inc()
		if category, ok := matchCategory(lowered); ok {
			return takeByConfidence(categoryCatalog[category], limit), nil
		}
		return takeByConfidence(mergedCatalog(), limit), nil
	}

	if pool := matchKeywords(lowered); len(pool) > 0 {
		metrics.RecommendationRequestsTotal.WithLabelValues("keyword").Inc()
		return s.shufflePicks(pool, maxCount), nil
	}

	metrics.RecommendationRequestsTotal.WithLabelValues("default").Inc()
	return s.defaultPicks(maxCount), nil
}

// SuggestTitles serves the suggest fallback: curated titles loosely
// matching the prompt, for when the catalog search comes up empty.
func (s *Service) SuggestTitles(ctx context.Context, prompt string, limit int) []domain.Suggestion {
	if limit <= 0 {
		limit = defaultMaxCount
	}
	recommendations, err := s.Recommend(ctx, prompt, limit)
	if err != nil {
		return nil
	}
	suggestions := make([]domain.Suggestion, 0, limit)
	for _, recommendation := range recommendations {
		suggestions = append(suggestions, domain.Suggestion{Title: recommendation.Title})
		if len(suggestions) == limit {
			break
		}
	}
	return suggestions
}

// topListCount reports whether the prompt asks for a ranked media list and,
// when it does, the requested count clamped to a sane range. A pattern
// without a number uses the caller's fallback. The superlative must be
// accompanied by a media noun or a known category, so prompts about other
// subjects keep flowing to the keyword and default routes.
func topListCount(lowered string, fallback int) (int, bool) {
	match := topListPattern.FindStringSubmatch(lowered)
	if match == nil {
		return 0, false
	}
	if !mediaNounPattern.MatchString(lowered) {
		if _, ok := matchCategory(lowered); !ok {
			return 0, false
		}
	}
	n, err := strconv.Atoi(match[1])
	if err != nil || n <= 0 {
		return fallback, true
	}
	if n > maxLimit {
		return maxLimit, true
	}
	return n, true
}

// matchCategory looks the prompt up against category names in both
// directions: "best horror movies" contains "horror", and a terse prompt
// like "hor" is contained in "horror". When several categories match, the
// alphabetically first one wins, so the same prompt always resolves to the
// same category.
func matchCategory(lowered string) (string, bool) {
	matches := make([]string, 0, 1)
	for category := range categoryCatalog {
		if strings.Contains(lowered, category) || strings.Contains(category, lowered) {
			matches = append(matches, category)
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[0], true
}

// matchKeywords concatenates the catalogs of every category whose keyword
// appears in the prompt. Categories are visited in sorted keyword order so
// the pool is the same for the same prompt.
func matchKeywords(lowered string) []domain.Recommendation {
	keywords := make([]string, 0, len(keywordCategories))
	for keyword := range keywordCategories {
		keywords = append(keywords, keyword)
	}
	sort.Strings(keywords)

	var pool []domain.Recommendation
	seen := make(map[string]struct{})
	for _, keyword := range keywords {
		if !strings.Contains(lowered, keyword) {
			continue
		}
		category := keywordCategories[keyword]
		if _, ok := seen[category]; ok {
			continue
		}
		seen[category] = struct{}{}
		pool = append(pool, categoryCatalog[category]...)
	}
	return pool
}

// takeByConfidence returns the top entries of one category ordered by
// confidence descending.
func takeByConfidence(entries []domain.Recommendation, limit int) []domain.Recommendation {
	picks := append([]domain.Recommendation(nil), entries...)
	sort.SliceStable(picks, func(i, j int) bool {
		return picks[i].Confidence > picks[j].Confidence
	})
	if len(picks) > limit {
		picks = picks[:limit]
	}
	return picks
}

// mergedCatalog concatenates every category ordered by confidence
// descending. Categories are visited in sorted name order so the merge is
// deterministic.
func mergedCatalog() []domain.Recommendation {
	categories := make([]string, 0, len(categoryCatalog))
	for category := range categoryCatalog {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	merged := make([]domain.Recommendation, 0, len(categoryCatalog)*6)
	for _, category := range categories {
		merged = append(merged, categoryCatalog[category]...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Confidence > merged[j].Confidence
	})
	return merged
}

// shufflePicks returns up to limit entries of the pool in seeded-shuffle
// order, so repeated unmatched prompts do not always show the same titles
// while a fixed seed keeps tests deterministic.
func (s *Service) shufflePicks(pool []domain.Recommendation, limit int) []domain.Recommendation {
	picks := append([]domain.Recommendation(nil), pool...)
	rng := rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(picks), func(i, j int) {
		picks[i], picks[j] = picks[j], picks[i]
	})
	if len(picks) > limit {
		picks = picks[:limit]
	}
	return picks
}

// defaultPicks serves prompts nothing else matched: the high-confidence head
// of the merged catalog, shuffled.
func (s *Service) defaultPicks(limit int) []domain.Recommendation {
	merged := mergedCatalog()
	head := limit * 2
	if head > len(merged) {
		head = len(merged)
	}
	return s.shufflePicks(merged[:head], limit)
}

func fromInference(items []inference.Item) []domain.Recommendation {
	recommendations := make([]domain.Recommendation, 0, len(items))
	for i, item := range items {
		category := strings.ToLower(strings.TrimSpace(item.Category))
		if category == "" {
			category = "general"
		}
		recommendations = append(recommendations, domain.Recommendation{
			ID:          fmt.Sprintf("rec-ai-%d", i+1),
			Title:       item.Title,
			Description: item.Description,
			Category:    category,
			Confidence:  item.Confidence,
		})
	}
	return recommendations
}
