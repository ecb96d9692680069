package info

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/policy-analytics-tui/internal/app"
	"github.com/j-veylop/policy-analytics-tui/internal/cache"
	"github.com/j-veylop/policy-analytics-tui/internal/config"
	"github.com/j-veylop/policy-analytics-tui/internal/models"
	"github.com/j-veylop/policy-analytics-tui/internal/services"
)

func TestModel_Init(t *testing.T) {
	m := New(app.NewState(), &config.Config{})
	if m.Init() != nil {
		t.Error("Init should return nil")
	}
}

func TestModel_RefreshKey(t *testing.T) {
	m := New(app.NewState(), &config.Config{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	if cmd == nil {
		t.Fatal("s should request a stats refresh")
	}
	if msg, ok := cmd().(app.RefreshMsg); !ok || msg.Resource != "stats" {
		t.Errorf("got %#v", cmd())
	}
	if _, cmd := m.Update(nil); cmd != nil {
		t.Error("non-key messages should be ignored")
	}
}

func TestModel_View(t *testing.T) {
	state := app.NewState()
	state.SetStats(services.StatsEvent{
		Records: 42,
		Version: 3,
		Imports: 12,
		Caches:  []cache.Stats{{Name: "query", EntryCount: 2, TotalSize: 2048, Hits: 3, Misses: 1}},
	})
	imports := make([]models.ImportBatch, 12)
	for i := range imports {
		imports[i] = models.ImportBatch{SourcePath: "/data/week.csv", RowCount: 10, ImportedAt: time.Now()}
	}
	imports[0].RejectedCount = 2
	state.SetImports(imports)

	cfg := &config.Config{
		DatabasePath:    "/tmp/policies.db",
		CacheTTL:        5 * time.Minute,
		CacheMaxEntries: 100,
		CacheMaxBytes:   5 << 20,
		MetricsAddr:     "127.0.0.1:9090",
		Thresholds:      models.DefaultThresholds(),
	}
	m := New(state, cfg)
	m.SetSize(120, 80)

	view := m.View()
	for _, want := range []string{
		"/tmp/policies.db",
		"0 .. 100 %",
		"http://127.0.0.1:9090/metrics",
		"Snapshot version",
		"hit rate 75%",
		"2 rejected",
		"... and 2 more",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_ViewWithoutData(t *testing.T) {
	m := New(app.NewState(), nil)
	m.SetSize(80, 60)
	view := m.View()
	for _, want := range []string{"Configuration not loaded", "No statistics yet", "No files imported"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_Help(t *testing.T) {
	m := New(app.NewState(), nil)
	if len(m.ShortHelp()) != 1 || len(m.FullHelp()) != 2 {
		t.Error("unexpected help bindings")
	}
}
