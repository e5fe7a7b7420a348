package onboarding

import (
	"sort"
	"strings"

	"ai-trading-agent/internal/types"
)

var sectorKeywords = map[string][]string{
	"technology":  {"tech", "software", "semiconductor", "ai "},
	"healthcare":  {"health", "pharma", "biotech", "medical"},
	"finance":     {"finance", "bank", "fintech", "insurance"},
	"energy":      {"energy", "oil", "solar", "renewable"},
	"consumer":    {"consumer", "retail", "e-commerce", "food"},
	"real_estate": {"real estate", "reit", "property", "housing"},
}

var goalKeywords = map[string][]string{
	"retirement":      {"retire", "retirement", "pension"},
	"growth":          {"growth", "grow my", "appreciation"},
	"income":          {"income", "dividend", "passive"},
	"wealth_building": {"wealth", "savings", "build capital"},
	"education":       {"college", "education", "tuition"},
}

// ExtractPreferences mines the user's side of the conversation with simple
// keyword rules. It is intentionally forgiving: anything not mentioned keeps
// its default.
func ExtractPreferences(messages []types.ChatMessage) types.Preferences {
	var sb strings.Builder
	for _, m := range messages {
		if m.Role == "user" {
			sb.WriteString(strings.ToLower(m.Content))
			sb.WriteString(" ")
		}
	}
	text := sb.String()

	prefs := types.Preferences{
		RiskTolerance:    extractRisk(text),
		InvestmentGoals:  extractMatches(text, goalKeywords),
		TimeHorizon:      extractHorizon(text),
		Sectors:          extractMatches(text, sectorKeywords),
		BudgetRange:      extractBudget(text),
		ExperienceLevel:  extractExperience(text),
		AutomatedTrading: extractAutomation(text),
	}
	if len(prefs.Sectors) == 0 {
		prefs.Sectors = []string{"technology"}
	}
	applyDefaults(&prefs)
	return prefs
}

// extractRisk checks conservative wording first so "not too risky, keep it
// safe" lands on the cautious side.
func extractRisk(text string) string {
	switch {
	case containsAny(text, "conservative", "low risk", "safe", "cautious", "careful"):
		return "conservative"
	case containsAny(text, "aggressive", "high risk", "risky", "big swings"):
		return "aggressive"
	case containsAny(text, "moderate", "balanced", "medium risk"):
		return "moderate"
	default:
		return ""
	}
}

func extractHorizon(text string) string {
	switch {
	case containsAny(text, "long term", "long-term", "decades", "10 years", "20 years", "retirement"):
		return "long"
	case containsAny(text, "short term", "short-term", "few months", "this year", "1 year"):
		return "short"
	case containsAny(text, "medium term", "medium-term", "few years", "5 years"):
		return "medium"
	default:
		return ""
	}
}

func extractBudget(text string) string {
	switch {
	case containsAny(text, "100k", "100,000", "large budget", "million", "500k"):
		return "large"
	case containsAny(text, "small budget", "under 1000", "1,000", "just starting", "a few hundred"):
		return "small"
	case containsAny(text, "10k", "10,000", "moderate budget", "50k"):
		return "medium"
	default:
		return ""
	}
}

func extractExperience(text string) string {
	switch {
	case containsAny(text, "expert", "professional", "years of experience", "advanced", "trade for a living"):
		return "advanced"
	case containsAny(text, "some experience", "intermediate", "a few trades", "couple of years"):
		return "intermediate"
	case containsAny(text, "beginner", "new to", "never invested", "first time", "no experience"):
		return "beginner"
	default:
		return ""
	}
}

func extractAutomation(text string) string {
	switch {
	case containsAny(text, "no automation", "no auto", "manual", "trade myself"):
		return "none"
	case containsAny(text, "full control", "trade for me", "automate", "hands off", "auto trade"):
		return "full_control"
	case containsAny(text, "analysis only", "just suggest", "suggestions only", "i decide", "ask me first"):
		return "analysis_only"
	default:
		return ""
	}
}

func extractMatches(text string, table map[string][]string) []string {
	var out []string
	for label, words := range table {
		for _, w := range words {
			if strings.Contains(text, w) {
				out = append(out, label)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
