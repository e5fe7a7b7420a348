package onboarding

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"ai-trading-agent/internal/storage"
	"ai-trading-agent/internal/types"
)

type stubCompleter struct {
	response string
	err      error
}

func (s *stubCompleter) Complete(_ context.Context, _ []types.ChatMessage) (string, error) {
	return s.response, s.err
}

func newTestService(t *testing.T, completer *stubCompleter) *Service {
	t.Helper()

	st, err := storage.Open(filepath.Join(t.TempDir(), "onboarding.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return NewService(completer, st)
}

func TestChatPassesThroughReply(t *testing.T) {
	svc := newTestService(t, &stubCompleter{response: "What is your risk tolerance?"})

	result, err := svc.Chat(context.Background(), []types.ChatMessage{
		{Role: "user", Content: "Hi, I want to start investing"},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if result.Complete {
		t.Error("Expected onboarding incomplete")
	}
	if result.Reply != "What is your risk tolerance?" {
		t.Errorf("Unexpected reply: %q", result.Reply)
	}
	if result.Preferences != nil {
		t.Error("Expected no preferences before completion")
	}
}

func TestChatCompletionStripsMarkerAndSaves(t *testing.T) {
	svc := newTestService(t, &stubCompleter{
		response: "Great, your profile is ready! " + CompleteMarker,
	})
	ctx := context.Background()

	result, err := svc.Chat(ctx, []types.ChatMessage{
		{Role: "user", Content: "I'm conservative and saving for retirement over the long term. I like tech and healthcare stocks. Analysis only please."},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if !result.Complete {
		t.Fatal("Expected onboarding complete")
	}
	if strings.Contains(result.Reply, CompleteMarker) {
		t.Errorf("Marker not stripped from reply: %q", result.Reply)
	}
	if result.Preferences == nil {
		t.Fatal("Expected extracted preferences")
	}
	if result.Preferences.RiskTolerance != "conservative" {
		t.Errorf("Expected conservative risk, got %q", result.Preferences.RiskTolerance)
	}

	// Completion must persist the profile
	saved, err := svc.GetPreferences(ctx)
	if err != nil {
		t.Fatalf("GetPreferences failed: %v", err)
	}
	if saved.RiskTolerance != "conservative" || saved.TimeHorizon != "long" {
		t.Errorf("Unexpected saved preferences: %+v", saved)
	}
}

func TestChatRequiresMessages(t *testing.T) {
	svc := newTestService(t, &stubCompleter{response: "hello"})

	if _, err := svc.Chat(context.Background(), nil); err == nil {
		t.Error("Expected error for empty conversation")
	}
}

func TestChatFallsBackWhenLLMDown(t *testing.T) {
	svc := newTestService(t, &stubCompleter{err: errors.New("connection refused")})

	result, err := svc.Chat(context.Background(), []types.ChatMessage{
		{Role: "user", Content: "Hi"},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if result.Reply == "" {
		t.Error("Expected scripted fallback reply")
	}
}

func TestGetPreferencesDefaultsBeforeOnboarding(t *testing.T) {
	svc := newTestService(t, &stubCompleter{})

	prefs, err := svc.GetPreferences(context.Background())
	if err != nil {
		t.Fatalf("GetPreferences failed: %v", err)
	}
	if prefs.RiskTolerance != "moderate" || prefs.ExperienceLevel != "beginner" {
		t.Errorf("Unexpected defaults: %+v", prefs)
	}
	if prefs.InvestmentGoals == nil || prefs.Sectors == nil {
		t.Error("Expected empty slices, not nil")
	}
}

func TestSaveAndGetPreferences(t *testing.T) {
	svc := newTestService(t, &stubCompleter{})
	ctx := context.Background()

	in := types.Preferences{
		RiskTolerance:    "aggressive",
		InvestmentGoals:  []string{"growth"},
		TimeHorizon:      "short",
		Sectors:          []string{"technology", "energy"},
		BudgetRange:      "large",
		ExperienceLevel:  "advanced",
		AutomatedTrading: "full_control",
	}
	if err := svc.SavePreferences(ctx, in); err != nil {
		t.Fatalf("SavePreferences failed: %v", err)
	}

	got, err := svc.GetPreferences(ctx)
	if err != nil {
		t.Fatalf("GetPreferences failed: %v", err)
	}
	if got.RiskTolerance != "aggressive" || got.AutomatedTrading != "full_control" {
		t.Errorf("Unexpected preferences: %+v", got)
	}
	if len(got.Sectors) != 2 {
		t.Errorf("Expected 2 sectors, got %v", got.Sectors)
	}
}

func TestExtractPreferences(t *testing.T) {
	messages := []types.ChatMessage{
		{Role: "user", Content: "I'm new to investing and pretty cautious with money."},
		{Role: "assistant", Content: "What are you investing for?"},
		{Role: "user", Content: "Mostly retirement, maybe some dividend income. I have about 10k to start."},
		{Role: "assistant", Content: "Any sectors you like?"},
		{Role: "user", Content: "I like tech and renewable energy. Just suggest trades, I decide."},
	}

	prefs := ExtractPreferences(messages)

	if prefs.RiskTolerance != "conservative" {
		t.Errorf("Expected conservative, got %q", prefs.RiskTolerance)
	}
	if prefs.TimeHorizon != "long" {
		t.Errorf("Expected long horizon from retirement mention, got %q", prefs.TimeHorizon)
	}
	if prefs.BudgetRange != "medium" {
		t.Errorf("Expected medium budget, got %q", prefs.BudgetRange)
	}
	if prefs.ExperienceLevel != "beginner" {
		t.Errorf("Expected beginner, got %q", prefs.ExperienceLevel)
	}
	if prefs.AutomatedTrading != "analysis_only" {
		t.Errorf("Expected analysis_only, got %q", prefs.AutomatedTrading)
	}

	wantGoals := map[string]bool{"retirement": true, "income": true}
	for _, g := range prefs.InvestmentGoals {
		delete(wantGoals, g)
	}
	if len(wantGoals) != 0 {
		t.Errorf("Missing goals %v in %v", wantGoals, prefs.InvestmentGoals)
	}

	wantSectors := map[string]bool{"technology": true, "energy": true}
	for _, s := range prefs.Sectors {
		delete(wantSectors, s)
	}
	if len(wantSectors) != 0 {
		t.Errorf("Missing sectors %v in %v", wantSectors, prefs.Sectors)
	}
}

func TestExtractPreferencesDefaultsWhenSilent(t *testing.T) {
	prefs := ExtractPreferences([]types.ChatMessage{
		{Role: "user", Content: "Hello there"},
	})

	if prefs.RiskTolerance != "moderate" {
		t.Errorf("Expected default moderate, got %q", prefs.RiskTolerance)
	}
	if prefs.TimeHorizon != "medium" {
		t.Errorf("Expected default medium, got %q", prefs.TimeHorizon)
	}
	if len(prefs.Sectors) != 1 || prefs.Sectors[0] != "technology" {
		t.Errorf("Expected default technology sector, got %v", prefs.Sectors)
	}
	if len(prefs.InvestmentGoals) != 0 {
		t.Errorf("Expected no goals, got %v", prefs.InvestmentGoals)
	}
}

func TestExtractPreferencesManualTrading(t *testing.T) {
	prefs := ExtractPreferences([]types.ChatMessage{
		{Role: "user", Content: "No automation please, I want to place every order manually."},
	})

	if prefs.AutomatedTrading != "none" {
		t.Errorf("Expected none, got %q", prefs.AutomatedTrading)
	}
}

func TestExtractPreferencesCautiousWinsOverRisky(t *testing.T) {
	prefs := ExtractPreferences([]types.ChatMessage{
		{Role: "user", Content: "Nothing too risky, I want to keep my savings safe."},
	})

	if prefs.RiskTolerance != "conservative" {
		t.Errorf("Expected conservative, got %q", prefs.RiskTolerance)
	}
}
