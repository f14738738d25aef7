package keywords_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/agentic-voice/backend/internal/keywords"
	"github.com/DeafMist/agentic-voice/backend/internal/models"
)

func userMessages(contents ...string) []models.Message {
	out := make([]models.Message, 0, len(contents))
	for _, c := range contents {
		out = append(out, models.Message{Role: "user", Content: c})
	}
	return out
}

func TestExtract(t *testing.T) {
	table := keywords.DefaultTable()

	tests := []struct {
		name     string
		messages []models.Message
		want     []string
	}{
		{name: "weather question", messages: userMessages("what's today's weather"), want: []string{"weather"}},
		{name: "no triggers", messages: userMessages("hello there"), want: nil},
		{name: "empty conversation", messages: nil, want: nil},
		{name: "case insensitive", messages: userMessages("Any BREAKING NEWS?"), want: []string{"news"}},
		{name: "one label per category", messages: userMessages("stock market economy"), want: []string{"finance"}},
		{name: "table order", messages: userMessages("python coding", "weekend forecast"), want: []string{"weather", "developer"}},
		{name: "overlapping triggers", messages: userMessages("tell me about machine learning"), want: []string{"education", "ai"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, table.Extract(tt.messages))
		})
	}
}

func TestExtractJoinsMessagesWithSpace(t *testing.T) {
	table, err := keywords.NewTable([]keywords.Category{
		{Name: "news", Triggers: []string{"current events"}},
	})
	require.NoError(t, err)

	require.Equal(t, []string{"news"}, table.Extract(userMessages("current", "events")))
	require.Nil(t, table.Extract(userMessages("currentevents")))
}

func TestFilter(t *testing.T) {
	table := keywords.DefaultTable()
	require.Equal(t, []string{"weather", "ai"}, table.Filter([]string{"weather", "unknown", "ai"}))
	require.Nil(t, table.Filter(nil))
}

func TestNamesFollowTableOrder(t *testing.T) {
	names := keywords.DefaultTable().Names()
	require.Len(t, names, 12)
	require.Equal(t, "weather", names[0])
	require.Equal(t, "developer", names[len(names)-1])
}

func TestCategoriesReturnsCopy(t *testing.T) {
	table := keywords.DefaultTable()
	cats := table.Categories()
	cats[0].Triggers[0] = "mutated"

	require.Equal(t, "weather", table.Categories()[0].Triggers[0])
}

func TestNewTableValidation(t *testing.T) {
	_, err := keywords.NewTable(nil)
	require.Error(t, err)

	_, err = keywords.NewTable([]keywords.Category{{Name: "", Triggers: []string{"x"}}})
	require.Error(t, err)

	_, err = keywords.NewTable([]keywords.Category{{Name: "a", Triggers: []string{" "}}})
	require.Error(t, err)

	_, err = keywords.NewTable([]keywords.Category{
		{Name: "a", Triggers: []string{"x"}},
		{Name: "a", Triggers: []string{"y"}},
	})
	require.ErrorContains(t, err, "duplicate")
}

func TestLoadTableFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keywords.yaml")
	content := `
- name: space
  triggers: [Rocket, "NASA"]
- name: weather
  triggers:
    - rain
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := keywords.LoadTable(path)
	require.NoError(t, err)
	require.Equal(t, []string{"space", "weather"}, table.Names())
	require.Equal(t, []string{"rocket", "nasa"}, table.Categories()[0].Triggers)
	require.Equal(t, []string{"space"}, table.Extract(userMessages("nasa launch")))
}

func TestLoadFallsBackToDefault(t *testing.T) {
	table, err := keywords.Load("")
	require.NoError(t, err)
	require.Len(t, table.Names(), 12)

	_, err = keywords.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
