package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bingeworthy/searchservice/internal/inference"
)

type fakeGenerator struct {
	items []inference.Item
	err   error
	calls int
}

func (f *fakeGenerator) Enabled() bool { return true }

func (f *fakeGenerator) Recommend(_ context.Context, _ string, limit int) ([]inference.Item, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.items) > limit {
		return f.items[:limit], f.err
	}
	return f.items, f.err
}

func TestRecommendRejectsShortPrompt(t *testing.T) {
	svc := NewService()
	for _, prompt := range []string{"", "ab", "  a  "} {
		if _, err := svc.Recommend(context.Background(), prompt, 0); !errors.Is(err, ErrInvalidPrompt) {
			t.Errorf("Recommend(%q) error = %v, want ErrInvalidPrompt", prompt, err)
		}
	}
}

func TestRecommendTopNCatalogRoute(t *testing.T) {
	svc := NewService()

	picks, err := svc.Recommend(context.Background(), "list top 3 best horror movies", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(picks) != 3 {
		t.Fatalf("picks = %d, want exactly 3", len(picks))
	}
	for i, pick := range picks {
		if pick.Category != "horror" {
			t.Errorf("pick %d category = %q, want horror", i, pick.Category)
		}
		if i > 0 && picks[i-1].Confidence < pick.Confidence {
			t.Errorf("picks must be ordered by confidence descending")
		}
	}

	// Same prompt, same picks.
	again, err := svc.Recommend(context.Background(), "list top 3 best horror movies", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range picks {
		if picks[i].ID != again[i].ID {
			t.Fatalf("catalog route must be deterministic: %v vs %v", picks, again)
		}
	}
}

func TestRecommendKeywordRoute(t *testing.T) {
	svc := NewService()

	picks, err := svc.Recommend(context.Background(), "something scary for tonight", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(picks) != 5 {
		t.Fatalf("picks = %d, want the requested 5", len(picks))
	}
	for _, pick := range picks {
		if pick.Category != "horror" {
			t.Errorf("category = %q, want horror via the scary keyword", pick.Category)
		}
	}
}

func TestRecommendMultiCategoryPromptIsStable(t *testing.T) {
	svc := NewService()

	first, err := svc.Recommend(context.Background(), "top 5 best horror comedy movies", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 5 {
		t.Fatalf("picks = %d, want 5", len(first))
	}
	for _, pick := range first {
		if pick.Category != first[0].Category {
			t.Fatalf("picks span categories %q and %q, want one", first[0].Category, pick.Category)
		}
	}
	for i := 0; i < 50; i++ {
		again, err := svc.Recommend(context.Background(), "top 5 best horror comedy movies", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for j := range first {
			if first[j].ID != again[j].ID {
				t.Fatalf("iteration %d: picks changed from %v to %v", i, first, again)
			}
		}
	}
}

func TestRecommendSuperlativeWithoutMediaNounSkipsListRoute(t *testing.T) {
	generator := &fakeGenerator{err: errors.New("must not be called")}
	svc := NewService(WithGenerator(generator), WithSeed(3))

	picks, err := svc.Recommend(context.Background(), "best pizza places nearby", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(picks) != 4 {
		t.Fatalf("picks = %d, want 4 from the default pool", len(picks))
	}
	if generator.calls != 0 {
		t.Errorf("prompt without a media noun or category must not reach inference, got %d calls", generator.calls)
	}
}

func TestRecommendDefaultRouteIsSeeded(t *testing.T) {
	first := NewService(WithSeed(7))
	second := NewService(WithSeed(7))
	third := NewService(WithSeed(8))

	prompt := "surprise me with anything good"
	picksA, err := first.Recommend(context.Background(), prompt, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	picksB, _ := second.Recommend(context.Background(), prompt, 5)
	picksC, _ := third.Recommend(context.Background(), prompt, 5)

	if len(picksA) != 5 {
		t.Fatalf("picks = %d, want 5", len(picksA))
	}
	for i := range picksA {
		if picksA[i].ID != picksB[i].ID {
			t.Fatalf("same seed must give the same order: %v vs %v", picksA, picksB)
		}
	}
	same := true
	for i := range picksA {
		if picksA[i].ID != picksC[i].ID {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds should give a different order")
	}
}

func TestRecommendInferenceRoute(t *testing.T) {
	generator := &fakeGenerator{
		items: []inference.Item{
			{Title: "Coherence", Description: "A dinner party during a comet flyby.", Category: "Sci-Fi", Confidence: 0.9},
		},
	}
	svc := NewService(WithGenerator(generator))

	picks, err := svc.Recommend(context.Background(), "best mind bending sci-fi movies", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(picks) != 1 || picks[0].Title != "Coherence" {
		t.Fatalf("unexpected picks: %+v", picks)
	}
	if picks[0].ID != "rec-ai-1" {
		t.Errorf("id = %q, want rec-ai-1", picks[0].ID)
	}
	if picks[0].Category != "sci-fi" {
		t.Errorf("category = %q, want lowercased sci-fi", picks[0].Category)
	}
}

func TestRecommendInferenceFailureFallsBack(t *testing.T) {
	generator := &fakeGenerator{err: errors.New("model loading")}
	svc := NewService(WithGenerator(generator))

	picks, err := svc.Recommend(context.Background(), "top 3 best horror movies", 0)
	if err != nil {
		t.Fatalf("fallback must not surface the inference error: %v", err)
	}
	if generator.calls != 1 {
		t.Errorf("generator calls = %d, want 1", generator.calls)
	}
	if len(picks) != 3 {
		t.Fatalf("picks = %d, want 3 from the horror catalog", len(picks))
	}
	for _, pick := range picks {
		if !strings.HasPrefix(pick.ID, "rec-horror-") {
			t.Errorf("pick %q must come from the curated catalog", pick.ID)
		}
	}
}

func TestTopListCount(t *testing.T) {
	cases := []struct {
		prompt   string
		fallback int
		want     int
		wantOK   bool
	}{
		{"top 3 horror movies", 6, 3, true},
		{"best 7 comedy films", 6, 7, true},
		{"top 10 thrillers", 6, 10, true},
		{"greatest 99 shows", 6, 20, true},
		{"top movies", 4, 4, true},
		{"best thrillers", 6, 6, true},
		{"best pizza places nearby", 6, 0, false},
		{"greatest hits of the 80s", 6, 0, false},
		{"something to watch", 6, 0, false},
		{"my laptop recommendations", 6, 0, false},
	}
	for _, tc := range cases {
		got, ok := topListCount(tc.prompt, tc.fallback)
		if ok != tc.wantOK || got != tc.want {
			t.Errorf("topListCount(%q, %d) = (%d, %v), want (%d, %v)", tc.prompt, tc.fallback, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestSuggestTitles(t *testing.T) {
	svc := NewService()

	suggestions := svc.SuggestTitles(context.Background(), "scary movies", 3)
	if len(suggestions) != 3 {
		t.Fatalf("suggestions = %d, want 3", len(suggestions))
	}
	for _, suggestion := range suggestions {
		if suggestion.Title == "" {
			t.Error("suggestion titles must not be empty")
		}
	}

	if got := svc.SuggestTitles(context.Background(), "ab", 3); got != nil {
		t.Errorf("invalid prompt must yield no suggestions, got %v", got)
	}
}
