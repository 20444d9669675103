package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sundaybox/weekplanner/internal/database"
	"google.golang.org/api/option"
)

// MealSuggestion is one meal the suggester proposes for a day, with the
// quantity breakdown the caller hands to Assign.
type MealSuggestion struct {
	Meal        database.MealData            `json:"meal"`
	Ingredients []database.IngredientRequest `json:"ingredients"`
}

// SuggesterService asks Gemini for a week of meal ideas constrained to the
// plan's ingredient pool. It is an adapter around an external collaborator:
// the engine never calls it while holding pool rows, and its output is
// validated by the allocator like any other request.
type SuggesterService struct {
	client *genai.Client
}

func NewSuggesterService(apiKey string) *SuggesterService {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		panic(fmt.Sprintf("Failed to create Gemini client: %v", err))
	}

	return &SuggesterService{client: client}
}

// SuggestWeek proposes one meal per requested day from the given pool
// snapshot.
func (s *SuggesterService) SuggestWeek(ctx context.Context, pool map[string]PoolEntry, days []string) (map[string]MealSuggestion, error) {
	model := s.client.GenerativeModel("gemini-1.5-flash")

	var inventory strings.Builder
	for _, name := range SortedNames(pool) {
		entry := pool[name]
		fmt.Fprintf(&inventory, "- %s: %g %s remaining\n", name, entry.Remaining, entry.Unit)
	}

	prompt := fmt.Sprintf(`You are a meal planning assistant for a weekly grocery box.

TASK:
Propose one dinner for each of these days: %s.
Use ONLY the ingredients listed below and never exceed the remaining quantities.
The total used across all days must fit within the remaining quantities.

AVAILABLE INGREDIENTS:
%s
CRITICAL JSON FORMAT REQUIREMENTS:
- Your response MUST be a valid JSON object keyed by day name
- Do not include any markdown formatting or explanatory text
- Every ingredient name must exactly match a name from the list above
- The JSON must have this exact shape:
  {
    "monday": {
      "meal": {"title": "Meal title", "protein": "chicken", "steps": ["step 1", "step 2"]},
      "ingredients": [{"name": "Chicken Breast", "quantity": 1.5, "unit": "lb"}]
    }
  }`, strings.Join(days, ", "), inventory.String())

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate meal suggestions: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from suggester")
	}

	responseText, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("unexpected response part type from suggester")
	}

	jsonStr := extractJSON(string(responseText))
	if jsonStr == "" {
		return nil, fmt.Errorf("no valid JSON found in response")
	}

	var suggestions map[string]MealSuggestion
	if err := json.Unmarshal([]byte(jsonStr), &suggestions); err != nil {
		return nil, fmt.Errorf("failed to parse suggestions: %w", err)
	}

	for day := range suggestions {
		if !database.IsValidDay(day) {
			delete(suggestions, day)
		}
	}
	return suggestions, nil
}

// extractJSON pulls the outermost JSON object out of a model response that
// may be wrapped in code fences or prose.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}
