package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleCSV = "snapshot_date,policy_start_year,week_number,third_level_organization," +
	"is_new_energy_vehicle,signed_premium_yuan,matured_premium_yuan,policy_count,claim_case_count," +
	"reported_claim_payment_yuan,expense_amount_yuan,marginal_contribution_amount_yuan\n" +
	"2024-03-01,2024,9,Org A,yes,1000,800,4,1,400,100,200\n" +
	"2024-03-01,2024,9,Org B,no,500,500,2,0,0,50,150\n" +
	"2024-03-08,2024,10,Org A,no,300,300,1,1,120,30,40\n"

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATABASE_PATH", filepath.Join(dir, "policies.db"))
	t.Setenv("DATA_DIR", filepath.Join(dir, "imports"))
	t.Setenv("THRESHOLDS_PATH", filepath.Join(dir, "thresholds.yaml"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "text")

	path := filepath.Join(dir, "week9.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCLI_ImportAnalyzeQueryClear(t *testing.T) {
	csvPath := setupEnv(t)

	out, err := execute(t, "import", csvPath)
	if err != nil {
		t.Fatalf("import failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "3 rows imported") {
		t.Errorf("import output = %q", out)
	}

	out, err = execute(t, "import", csvPath)
	if err != nil || !strings.Contains(out, "unchanged") {
		t.Errorf("re-import = %q, %v", out, err)
	}

	out, err = execute(t, "analyze", "--group-by", "third_level_organization", "--json")
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	var groups []map[string]any
	if err := json.Unmarshal([]byte(out), &groups); err != nil {
		t.Fatalf("analyze output is not JSON: %v\n%s", err, out)
	}
	if len(groups) != 2 {
		t.Errorf("analyze returned %d groups, want 2", len(groups))
	}

	out, err = execute(t, "analyze", "-g", "third_level_organization", "-f", "is_new_energy_vehicle=no")
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if !strings.Contains(out, "GROUP") || !strings.Contains(out, "Org B") {
		t.Errorf("analyze table = %q", out)
	}

	out, err = execute(t, "query", "--filter", "third_level_organization=Org A", "--sort", "signed_premium_yuan:desc", "--page-size", "1")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	var page struct {
		Total      int `json:"total"`
		TotalPages int `json:"total_pages"`
		Data       []json.RawMessage
	}
	if err := json.Unmarshal([]byte(out), &page); err != nil {
		t.Fatalf("query output is not JSON: %v\n%s", err, out)
	}
	if page.Total != 2 || page.TotalPages != 2 || len(page.Data) != 1 {
		t.Errorf("page = %+v", page)
	}

	if out, err = execute(t, "clear"); err != nil || !strings.Contains(out, "cleared") {
		t.Fatalf("clear = %q, %v", out, err)
	}
	out, err = execute(t, "query")
	if err != nil || !strings.Contains(out, `"total": 0`) {
		t.Errorf("query after clear = %q, %v", out, err)
	}
}

func TestCLI_Errors(t *testing.T) {
	setupEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown group", []string{"analyze", "--group-by", "colour"}},
		{"bad filter", []string{"analyze", "--filter", "week_number"}},
		{"bad sort", []string{"query", "--sort", "colour"}},
		{"bad page", []string{"query", "--page", "0"}},
		{"missing file", []string{"import", "nope.csv"}},
		{"import without args", []string{"import"}},
		{"stray argument", []string{"dashboard"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Errorf("%v should fail", tt.args)
			}
		})
	}
}

func TestCLI_Version(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "policydash ") {
		t.Errorf("version output = %q", out)
	}
}

func TestCLI_DeleteOneImport(t *testing.T) {
	csvPath := setupEnv(t)
	if _, err := execute(t, "import", csvPath); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	out, err := execute(t, "imports")
	if err != nil {
		t.Fatalf("imports failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "week9.csv") {
		t.Fatalf("imports output = %q", out)
	}
	id := strings.Fields(lines[1])[0]

	if _, err := execute(t, "clear", "--import", "no-such-batch"); err == nil {
		t.Error("deleting an unknown batch should fail")
	}
	out, err = execute(t, "clear", "--import", id)
	if err != nil || !strings.Contains(out, id) {
		t.Fatalf("clear --import = %q, %v", out, err)
	}

	out, err = execute(t, "query")
	if err != nil || !strings.Contains(out, `"total": 0`) {
		t.Errorf("query after delete = %q, %v", out, err)
	}
	out, _ = execute(t, "imports")
	if strings.Contains(out, id) {
		t.Errorf("batch still listed: %q", out)
	}
}
