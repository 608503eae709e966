package db

import (
	"testing"

	"github.com/google/uuid"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// Use in-memory database for tests
	database := &DB{path: ":memory:"}
	var err error
	database.DB, err = openDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := database.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	return database
}

func sampleRun() RunRecord {
	return RunRecord{
		RunID:             uuid.NewString(),
		Query:             "extract product titles and prices",
		Stage:             "full",
		Segments:          4,
		Confidence:        0.84,
		ContainerSelector: ".results",
		ItemSelector:      ".item",
		SchemaJSON:        `{"container":{"selector":".results"}}`,
		InputTokens:       12000,
		OutputTokens:      1800,
	}
}

func TestInsertRunAndGetRun(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	run := sampleRun()
	if err := db.InsertRun(run); err != nil {
		t.Fatalf("InsertRun() failed: %v", err)
	}

	got, err := db.GetRun(run.RunID)
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if got.Query != run.Query {
		t.Errorf("Query = %q, want %q", got.Query, run.Query)
	}
	if got.Stage != run.Stage {
		t.Errorf("Stage = %q, want %q", got.Stage, run.Stage)
	}
	if got.Confidence != run.Confidence {
		t.Errorf("Confidence = %v, want %v", got.Confidence, run.Confidence)
	}
	if got.SchemaJSON != run.SchemaJSON {
		t.Errorf("SchemaJSON = %q, want %q", got.SchemaJSON, run.SchemaJSON)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}
}

func TestGetRun_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if _, err := db.GetRun("no-such-run"); err == nil {
		t.Error("GetRun() should return error for unknown run")
	}
}

func TestInsertRun_RejectsDuplicateID(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	run := sampleRun()
	if err := db.InsertRun(run); err != nil {
		t.Fatalf("InsertRun() failed: %v", err)
	}
	if err := db.InsertRun(run); err == nil {
		t.Error("InsertRun() should reject duplicate run_id")
	}
}

func TestListRuns(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	for i := 0; i < 3; i++ {
		run := sampleRun()
		if i == 2 {
			run.Stage = "basic_fallback"
		}
		if err := db.InsertRun(run); err != nil {
			t.Fatalf("InsertRun() failed: %v", err)
		}
	}

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}

	limited, err := db.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d runs with limit 2", len(limited))
	}
}

func TestInsertAndListOracleCalls(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	run := sampleRun()
	if err := db.InsertRun(run); err != nil {
		t.Fatalf("InsertRun() failed: %v", err)
	}

	calls := []OracleCallRecord{
		{RunID: run.RunID, Purpose: "consolidation", InputTokens: 3000, OutputTokens: 400, LatencyMS: 1200, Success: true},
		{RunID: run.RunID, Purpose: "consolidation", InputTokens: 3200, OutputTokens: 380, LatencyMS: 1100, Success: true},
		{RunID: run.RunID, Purpose: "synthesis", InputTokens: 5000, OutputTokens: 900, LatencyMS: 2500, Success: false, Error: "rate limited"},
	}
	for _, c := range calls {
		if _, err := db.InsertOracleCall(c); err != nil {
			t.Fatalf("InsertOracleCall() failed: %v", err)
		}
	}

	got, err := db.ListOracleCalls(run.RunID)
	if err != nil {
		t.Fatalf("ListOracleCalls() failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d calls, want 3", len(got))
	}
	if got[0].Purpose != "consolidation" || got[2].Purpose != "synthesis" {
		t.Errorf("calls out of order: %v", got)
	}
	if got[2].Error != "rate limited" {
		t.Errorf("Error = %q, want recorded message", got[2].Error)
	}
	if got[2].Success {
		t.Error("failed call recorded as success")
	}
}

func TestOracleCalls_CascadeOnRunDelete(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	run := sampleRun()
	if err := db.InsertRun(run); err != nil {
		t.Fatalf("InsertRun() failed: %v", err)
	}
	if _, err := db.InsertOracleCall(OracleCallRecord{RunID: run.RunID, Purpose: "synthesis", Success: true}); err != nil {
		t.Fatalf("InsertOracleCall() failed: %v", err)
	}

	if _, err := db.Exec("DELETE FROM runs WHERE run_id = ?", run.RunID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	calls, err := db.ListOracleCalls(run.RunID)
	if err != nil {
		t.Fatalf("ListOracleCalls() failed: %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("got %d calls after cascade delete, want 0", len(calls))
	}
}
