package keywords

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/DeafMist/agentic-voice/backend/internal/models"
)

// Category is a topic label with the substrings that trigger it.
type Category struct {
	Name     string   `yaml:"name" json:"name"`
	Triggers []string `yaml:"triggers" json:"triggers"`
}

// Table is an ordered, immutable category table.
type Table struct {
	categories []Category
	names      map[string]struct{}
}

var defaultCategories = []Category{
	{Name: "weather", Triggers: []string{"weather", "temperature", "forecast", "climate"}},
	{Name: "news", Triggers: []string{"news", "headlines", "current events", "breaking news"}},
	{Name: "sports", Triggers: []string{"sports", "game", "score", "team"}},
	{Name: "finance", Triggers: []string{"stock", "market", "investment", "finance", "economy"}},
	{Name: "technology", Triggers: []string{"technology", "tech", "gadget", "innovation"}},
	{Name: "entertainment", Triggers: []string{"movie", "music", "entertainment", "show", "concert"}},
	{Name: "health", Triggers: []string{"health", "wellness", "medicine", "fitness"}},
	{Name: "travel", Triggers: []string{"travel", "vacation", "trip", "destination"}},
	{Name: "food", Triggers: []string{"food", "recipe", "cuisine", "restaurant"}},
	{Name: "education", Triggers: []string{"education", "learning", "school", "course"}},
	{Name: "ai", Triggers: []string{"ai", "artificial intelligence", "machine learning", "deep learning"}},
	{Name: "developer", Triggers: []string{"developer", "programming", "coding", "software", "github", "npm", "python", "javascript"}},
}

// DefaultTable returns the built-in category table.
func DefaultTable() *Table {
	t, err := NewTable(defaultCategories)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in keyword table: %v", err))
	}
	return t
}

// NewTable validates categories and builds a table. Triggers are lower-cased.
func NewTable(categories []Category) (*Table, error) {
	if len(categories) == 0 {
		return nil, errors.New("keyword table is empty")
	}

	t := &Table{
		categories: make([]Category, 0, len(categories)),
		names:      make(map[string]struct{}, len(categories)),
	}
	for i, c := range categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("category %d has no name", i)
		}
		if _, dup := t.names[name]; dup {
			return nil, fmt.Errorf("duplicate category %q", name)
		}

		triggers := make([]string, 0, len(c.Triggers))
		for _, trig := range c.Triggers {
			if trig = strings.ToLower(strings.TrimSpace(trig)); trig != "" {
				triggers = append(triggers, trig)
			}
		}
		if len(triggers) == 0 {
			return nil, fmt.Errorf("category %q has no triggers", name)
		}

		t.names[name] = struct{}{}
		t.categories = append(t.categories, Category{Name: name, Triggers: triggers})
	}
	return t, nil
}

// LoadTable reads a YAML list of {name, triggers} entries.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyword table: %w", err)
	}

	var categories []Category
	if err := yaml.Unmarshal(data, &categories); err != nil {
		return nil, fmt.Errorf("parse keyword table %s: %w", path, err)
	}
	return NewTable(categories)
}

// Load returns the table at path, or the built-in one when path is empty.
func Load(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTable(), nil
	}
	return LoadTable(path)
}

// Extract returns, in table order, every category with a trigger that occurs as a
// substring of the lower-cased, space-joined message contents. Each category is
// reported at most once.
func (t *Table) Extract(messages []models.Message) []string {
	if len(messages) == 0 {
		return nil
	}

	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, strings.ToLower(m.Content))
	}
	text := strings.Join(parts, " ")

	var matched []string
	for _, c := range t.categories {
		for _, trig := range c.Triggers {
			if strings.Contains(text, trig) {
				matched = append(matched, c.Name)
				break
			}
		}
	}
	return matched
}

// Filter keeps only labels that name a category of this table.
func (t *Table) Filter(labels []string) []string {
	var out []string
	for _, l := range labels {
		if _, ok := t.names[l]; ok {
			out = append(out, l)
		}
	}
	return out
}

// Names lists category names in table order.
func (t *Table) Names() []string {
	out := make([]string, 0, len(t.categories))
	for _, c := range t.categories {
		out = append(out, c.Name)
	}
	return out
}

// Categories returns a copy of the table.
func (t *Table) Categories() []Category {
	out := make([]Category, len(t.categories))
	for i, c := range t.categories {
		out[i] = Category{Name: c.Name, Triggers: append([]string(nil), c.Triggers...)}
	}
	return out
}
