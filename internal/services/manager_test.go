package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/j-veylop/policy-analytics-tui/internal/config"
	"github.com/j-veylop/policy-analytics-tui/internal/models"
)

const sampleCSV = "snapshot_date,week_number,chengdu_branch,signed_premium_yuan,matured_premium_yuan," +
	"policy_count,reported_claim_payment_yuan,expense_amount_yuan\n" +
	"2024-03-01,9,Chengdu,1000,1000,2,500,100\n" +
	"2024-03-08,10,Mianyang,500,500,1,300,50\n"

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, "imports")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	cfg := &config.Config{
		DatabasePath: filepath.Join(tmpDir, "test.db"),
		DataDir:      dataDir,
	}
	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr, dataDir
}

func writeSample(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "week.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestNewManager(t *testing.T) {
	mgr, _ := newTestManager(t)

	if mgr.Dataset() == nil {
		t.Error("Dataset service should be initialized")
	}
	if mgr.QueryService() == nil {
		t.Error("Query service should be initialized")
	}
	if mgr.Trend() == nil {
		t.Error("Trend service should be initialized")
	}
	if mgr.Metrics() == nil {
		t.Error("Metrics should be initialized")
	}
	if mgr.Database() == nil {
		t.Error("Database should be initialized")
	}
}

func TestNewManager_BadDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	blocker := filepath.Join(tmpDir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewManager(&config.Config{DatabasePath: filepath.Join(blocker, "sub", "test.db")})
	if err == nil {
		t.Error("expected error when database directory cannot be created")
	}
}

func TestManager_ImportAndQuery(t *testing.T) {
	mgr, dir := newTestManager(t)
	ctx := context.Background()

	report, err := mgr.ImportFile(writeSample(t, dir))
	if err != nil {
		t.Fatalf("ImportFile failed: %v", err)
	}
	if report.Batch.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", report.Batch.RowCount)
	}

	page, err := mgr.Query(ctx, nil, nil, 1, 0)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("Total = %d, want 2", page.Total)
	}

	summary, err := mgr.Summary(ctx, nil)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if summary.Count != 2 || summary.Metrics.MaturedLossRatio != 53.3 {
		t.Errorf("summary = count %d, loss %v", summary.Count, summary.Metrics.MaturedLossRatio)
	}

	results, err := mgr.Analyze(ctx, nil, []models.Dimension{models.DimChengduBranch}, 0)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Analyze returned %d groups, want 2", len(results))
	}

	series, err := mgr.WeeklyTrend(ctx, nil, models.TrendLossRatio)
	if err != nil {
		t.Fatalf("WeeklyTrend failed: %v", err)
	}
	if len(series.Points) != 2 || series.Comparison != "20% higher than last week" {
		t.Errorf("series = %+v", series)
	}

	stats := mgr.GetStats()
	if stats.Records != 2 || stats.Imports != 1 || len(stats.Caches) != 2 {
		t.Errorf("stats = %+v", stats)
	}

	if err := mgr.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if mgr.GetStats().Records != 0 {
		t.Error("Clear should empty the dataset")
	}
}

func TestManager_Subscription(t *testing.T) {
	mgr, _ := newTestManager(t)

	ch, cmd := mgr.Subscribe()
	if ch == nil {
		t.Error("Subscribe returned nil channel")
	}
	if cmd == nil {
		t.Error("Subscribe returned nil command")
	}

	mgr.Unsubscribe(ch)

	// Drains any buffered events and ends only once the channel is closed.
	for range ch {
	}
}

func TestManager_Broadcast(t *testing.T) {
	mgr, _ := newTestManager(t)

	ch, _ := mgr.Subscribe()
	defer mgr.Unsubscribe(ch)

	event := StatsEvent{Records: 1}
	mgr.broadcast(event)

	select {
	case e := <-ch:
		if got, ok := e.(StatsEvent); !ok || got.Records != 1 {
			t.Errorf("Got event %v, want %v", e, event)
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for broadcast")
	}
}

func TestManager_ImportBroadcastsChange(t *testing.T) {
	mgr, dir := newTestManager(t)
	ch, _ := mgr.Subscribe()

	if _, err := mgr.ImportFile(writeSample(t, dir)); err != nil {
		t.Fatalf("ImportFile failed: %v", err)
	}

	var sawImport, sawChange bool
	deadline := time.After(2 * time.Second)
	for !sawImport || !sawChange {
		select {
		case e := <-ch:
			switch ev := e.(type) {
			case ImportEvent:
				sawImport = true
			case DatasetChangedEvent:
				if ev.Records == 2 {
					sawChange = true
				}
			}
		case <-deadline:
			t.Fatalf("timed out: import=%v change=%v", sawImport, sawChange)
		}
	}
}

func TestManager_CheckAnomalies(t *testing.T) {
	var notified []string
	mgr := &Manager{
		cfg: &config.Config{NotifyAnomalies: true},
		notify: func(title, body string) error {
			notified = append(notified, body)
			return nil
		},
	}

	// First summary only sets the baseline.
	mgr.checkAnomalies([]string{"a"})
	if len(notified) != 0 {
		t.Fatalf("baseline should not notify, got %v", notified)
	}

	mgr.checkAnomalies([]string{"a"})
	if len(notified) != 0 {
		t.Errorf("unchanged anomalies should not notify, got %v", notified)
	}

	mgr.checkAnomalies([]string{"a", "b"})
	if len(notified) != 1 || notified[0] != "b" {
		t.Errorf("notified = %v, want [b]", notified)
	}

	mgr.cfg.NotifyAnomalies = false
	mgr.checkAnomalies([]string{"c"})
	if len(notified) != 1 {
		t.Error("notifications should respect NotifyAnomalies")
	}
}

func TestManager_InitialState(t *testing.T) {
	mgr, _ := newTestManager(t)

	summary, stats := mgr.InitialState()
	if summary.Count != 0 {
		t.Errorf("summary count = %d, want 0", summary.Count)
	}
	if stats.Records != 0 {
		t.Errorf("stats records = %d, want 0", stats.Records)
	}
	if summary.Dimensions == nil {
		t.Error("summary of empty dataset should still carry a dimension map")
	}
}

func TestManager_StartWatching(t *testing.T) {
	mgr, dir := newTestManager(t)
	writeSample(t, dir)

	ch, _ := mgr.Subscribe()
	if err := mgr.StartWatching(); err != nil {
		t.Fatalf("StartWatching failed: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-ch:
			if ev, ok := e.(DatasetChangedEvent); ok && ev.Records == 2 {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for pending file import")
		}
	}
}

func TestWaitForEvent(t *testing.T) {
	ch := make(chan ServiceEvent, 1)
	ch <- StatsEvent{}

	cmd := WaitForEvent(ch)
	msg := cmd()
	if msg == nil {
		t.Error("WaitForEvent cmd returned nil msg")
	}
}

func TestServiceEvent_Interface(t *testing.T) {
	var _ ServiceEvent = DatasetChangedEvent{}
	var _ ServiceEvent = ImportEvent{}
	var _ ServiceEvent = AnomaliesEvent{}
	var _ ServiceEvent = ErrorEvent{}
	var _ ServiceEvent = StatsEvent{}
}

func TestManager_Close(t *testing.T) {
	mgr := &Manager{} // Empty manager
	if err := mgr.Close(); err != nil {
		t.Errorf("Close on empty manager failed: %v", err)
	}

	full, _ := newTestManager(t)
	if err := full.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := full.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestManager_DeleteImportAndClear(t *testing.T) {
	mgr, dir := newTestManager(t)
	path := writeSample(t, dir)
	report, err := mgr.ImportFile(path)
	if err != nil {
		t.Fatalf("ImportFile failed: %v", err)
	}

	if err := mgr.DeleteImport("missing"); err == nil {
		t.Error("DeleteImport should fail for an unknown batch")
	}
	if err := mgr.DeleteImport(report.Batch.ID); err != nil {
		t.Fatalf("DeleteImport failed: %v", err)
	}
	if stats := mgr.GetStats(); stats.Records != 0 || stats.Imports != 0 {
		t.Errorf("after delete: %+v", stats)
	}

	if _, err := mgr.ImportFile(path); err != nil {
		t.Fatalf("re-import failed: %v", err)
	}
	if err := mgr.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if n, _ := mgr.Database().CountRecords(); n != 0 {
		t.Errorf("records after Clear = %d", n)
	}
}

func TestManager_BroadcastWithoutSubscribers(t *testing.T) {
	mgr := &Manager{}
	done := make(chan struct{})
	go func() {
		for i := range 500 {
			mgr.broadcast(StatsEvent{Records: i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked with no subscribers")
	}
}
