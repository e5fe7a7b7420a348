package onboarding

import (
	"context"
	"errors"
	"strings"

	"ai-trading-agent/internal/interfaces"
	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/storage"
	"ai-trading-agent/internal/types"
)

// CompleteMarker is emitted by the assistant when it has gathered enough to
// fill out the user's preference profile. The marker is stripped before the
// reply reaches the client.
const CompleteMarker = "ONBOARDING_COMPLETE"

// defaultUserID keys the single-user preference row.
const defaultUserID = 1

const systemPrompt = `You are a friendly investment advisor onboarding a new user of a paper-trading dashboard.
Ask one question at a time to learn their risk tolerance, investment goals, time horizon, sectors of interest, budget range, experience level and whether they want automated trading.
Keep replies short and conversational.
When you have learned enough across all of these areas, include the exact token ` + CompleteMarker + ` at the end of your reply.`

// ChatResult is the outcome of one onboarding exchange.
type ChatResult struct {
	Reply       string             `json:"response"`
	Complete    bool               `json:"onboarding_complete"`
	Preferences *types.Preferences `json:"extracted_preferences,omitempty"`
}

// Service drives the conversational onboarding flow and stores the extracted
// preference profile.
type Service struct {
	completer interfaces.ChatCompleter
	store     *storage.Store
}

func NewService(completer interfaces.ChatCompleter, store *storage.Store) *Service {
	return &Service{
		completer: completer,
		store:     store,
	}
}

// Chat sends the conversation to the assistant. When the assistant signals
// completion, preferences extracted from the user's messages are saved.
func (s *Service) Chat(ctx context.Context, messages []types.ChatMessage) (*ChatResult, error) {
	if len(messages) == 0 {
		return nil, errors.New("at least one message is required")
	}

	conv := append([]types.ChatMessage{{Role: "system", Content: systemPrompt}}, messages...)

	reply, err := s.completer.Complete(ctx, conv)
	if err != nil {
		logger.Warn(ctx, "Onboarding assistant unavailable, using scripted reply", "error", err)
		reply = scriptedReply(messages)
	}

	result := &ChatResult{Reply: reply}
	if strings.Contains(reply, CompleteMarker) {
		result.Complete = true
		result.Reply = strings.TrimSpace(strings.ReplaceAll(reply, CompleteMarker, ""))

		prefs := ExtractPreferences(messages)
		result.Preferences = &prefs
		if err := s.store.SavePreferences(ctx, defaultUserID, prefs); err != nil {
			logger.ErrorWithErr(ctx, "Failed to save onboarding preferences", err)
		}
	}
	return result, nil
}

// SavePreferences stores an explicit preference profile.
func (s *Service) SavePreferences(ctx context.Context, prefs types.Preferences) error {
	applyDefaults(&prefs)
	return s.store.SavePreferences(ctx, defaultUserID, prefs)
}

// GetPreferences returns the stored profile, or a default profile when
// onboarding has not run yet.
func (s *Service) GetPreferences(ctx context.Context) (*types.Preferences, error) {
	prefs, err := s.store.GetPreferences(ctx, defaultUserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			def := types.Preferences{}
			applyDefaults(&def)
			return &def, nil
		}
		return nil, err
	}
	return prefs, nil
}

func applyDefaults(p *types.Preferences) {
	if p.RiskTolerance == "" {
		p.RiskTolerance = "moderate"
	}
	if p.TimeHorizon == "" {
		p.TimeHorizon = "medium"
	}
	if p.BudgetRange == "" {
		p.BudgetRange = "medium"
	}
	if p.ExperienceLevel == "" {
		p.ExperienceLevel = "beginner"
	}
	if p.AutomatedTrading == "" {
		p.AutomatedTrading = "analysis_only"
	}
	if p.InvestmentGoals == nil {
		p.InvestmentGoals = []string{}
	}
	if p.Sectors == nil {
		p.Sectors = []string{}
	}
}

// scriptedReply keeps onboarding usable when no LLM is reachable. After a few
// exchanges it completes with whatever the keyword extractor found.
func scriptedReply(messages []types.ChatMessage) string {
	userTurns := 0
	for _, m := range messages {
		if m.Role == "user" {
			userTurns++
		}
	}

	switch userTurns {
	case 0, 1:
		return "Welcome! To tailor the dashboard for you, how would you describe your risk tolerance: conservative, moderate, or aggressive?"
	case 2:
		return "Good to know. What are you mainly investing for, and roughly how long do you plan to stay invested?"
	case 3:
		return "Almost done. Any sectors you are especially interested in, and would you like the automated trading engine to act on its analysis or only suggest?"
	default:
		return "Thanks, I have what I need to set up your dashboard. " + CompleteMarker
	}
}
