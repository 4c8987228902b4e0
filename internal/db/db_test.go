package db

import (
	"errors"
	"os"
	"testing"
)

func getTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}
	database, err := Connect(dsn)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if err := database.Migrate(); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	t.Cleanup(func() {
		// Clean up test data
		database.conn.Exec("DELETE FROM trials")
		database.conn.Exec("DELETE FROM rt60_sessions")
		database.conn.Exec("DELETE FROM cps_sessions")
		database.conn.Exec("DELETE FROM sessions")
		database.conn.Exec("DELETE FROM participants")
		database.Close()
	})
	return database
}

func intPtr(v int) *int { return &v }

func TestConnect(t *testing.T) {
	database := getTestDB(t)
	if err := database.Ping(); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
}

func TestMigrate(t *testing.T) {
	database := getTestDB(t)

	// Verify tables exist by querying them
	tables := []string{"participants", "sessions", "trials", "rt60_sessions", "cps_sessions"}
	for _, table := range tables {
		var exists bool
		err := database.conn.QueryRow(`
			SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)
		`, table).Scan(&exists)
		if err != nil {
			t.Errorf("checking table %s: %v", table, err)
		}
		if !exists {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestGetOrCreateParticipant(t *testing.T) {
	database := getTestDB(t)

	first, err := database.GetOrCreateParticipant("Alice")
	if err != nil {
		t.Fatalf("GetOrCreateParticipant() error: %v", err)
	}
	if first.ID == "" {
		t.Fatal("participant ID is empty")
	}

	again, err := database.GetOrCreateParticipant("Alice")
	if err != nil {
		t.Fatalf("GetOrCreateParticipant() second call error: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("same name resolved to a different participant: %s vs %s", again.ID, first.ID)
	}
}

func TestGetOrCreateParticipant_NameFreedBySoftDelete(t *testing.T) {
	database := getTestDB(t)

	first, _ := database.GetOrCreateParticipant("Bob")
	if err := database.SoftDeleteParticipant(first.ID); err != nil {
		t.Fatalf("SoftDeleteParticipant() error: %v", err)
	}

	second, err := database.GetOrCreateParticipant("Bob")
	if err != nil {
		t.Fatalf("re-registering freed name: %v", err)
	}
	if second.ID == first.ID {
		t.Error("re-registered name resolved to the soft-deleted participant")
	}
}

func TestSessionLifecycle(t *testing.T) {
	database := getTestDB(t)

	p, _ := database.GetOrCreateParticipant("Carol")
	token, err := database.CreateSession(p.ID)
	if err != nil {
		t.Fatalf("CreateSession() error: %v", err)
	}
	if len(token) != 32 {
		t.Errorf("token length = %d, want 32", len(token))
	}

	s, err := database.GetSession(token)
	if err != nil {
		t.Fatalf("GetSession() error: %v", err)
	}
	if s.Consent || s.Completed {
		t.Errorf("fresh session flags = consent=%v completed=%v", s.Consent, s.Completed)
	}

	// Submit before consent must be rejected.
	trial := TrialInsert{RawMs: 234, CleanMs: intPtr(234), Index: 1, UA: "test-agent"}
	if err := database.SubmitTrial(token, trial); !errors.Is(err, ErrConsentRequired) {
		t.Errorf("SubmitTrial before consent = %v, want ErrConsentRequired", err)
	}

	if err := database.RecordConsent(token); err != nil {
		t.Fatalf("RecordConsent() error: %v", err)
	}
	if err := database.SubmitTrial(token, trial); err != nil {
		t.Fatalf("SubmitTrial() error: %v", err)
	}

	// At most one submission per session.
	if err := database.SubmitTrial(token, trial); !errors.Is(err, ErrSessionCompleted) {
		t.Errorf("second SubmitTrial = %v, want ErrSessionCompleted", err)
	}
	// Consent on a completed session is rejected too.
	if err := database.RecordConsent(token); !errors.Is(err, ErrSessionCompleted) {
		t.Errorf("RecordConsent after completion = %v, want ErrSessionCompleted", err)
	}
}

func TestSession_NotFound(t *testing.T) {
	database := getTestDB(t)

	if _, err := database.GetSession("deadbeefdeadbeefdeadbeefdeadbeef"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("GetSession = %v, want ErrSessionNotFound", err)
	}
	if err := database.RecordConsent("deadbeefdeadbeefdeadbeefdeadbeef"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("RecordConsent = %v, want ErrSessionNotFound", err)
	}
}

func TestSoftDeleteParticipant_CascadesFlags(t *testing.T) {
	database := getTestDB(t)

	p, _ := database.GetOrCreateParticipant("Dave")
	token, _ := database.CreateSession(p.ID)
	database.RecordConsent(token)
	database.SubmitTrial(token, TrialInsert{RawMs: 300, CleanMs: intPtr(300), Index: 1})
	database.InsertRT60Summary(p.ID, RT60Summary{TotalClicks: 12, BestMs: intPtr(210), AvgMs: intPtr(260)})

	if err := database.SoftDeleteParticipant(p.ID); err != nil {
		t.Fatalf("SoftDeleteParticipant() error: %v", err)
	}

	var trialDeleted, summaryDeleted bool
	database.conn.QueryRow("SELECT deleted FROM trials WHERE participant_id = $1", p.ID).Scan(&trialDeleted)
	database.conn.QueryRow("SELECT deleted FROM rt60_sessions WHERE participant_id = $1", p.ID).Scan(&summaryDeleted)
	if !trialDeleted || !summaryDeleted {
		t.Errorf("cascade flags: trial=%v summary=%v, want both true", trialDeleted, summaryDeleted)
	}

	// Idempotent.
	if err := database.SoftDeleteParticipant(p.ID); err != nil {
		t.Errorf("repeated SoftDeleteParticipant() error: %v", err)
	}
}

func TestHardDeleteParticipant_CascadesRows(t *testing.T) {
	database := getTestDB(t)

	p, _ := database.GetOrCreateParticipant("Erin")
	token, _ := database.CreateSession(p.ID)
	database.RecordConsent(token)
	database.SubmitTrial(token, TrialInsert{RawMs: 45, Index: 1}) // too fast: clean stays NULL

	if err := database.HardDeleteParticipant(p.ID); err != nil {
		t.Fatalf("HardDeleteParticipant() error: %v", err)
	}

	var count int
	database.conn.QueryRow("SELECT COUNT(*) FROM trials WHERE participant_id = $1", p.ID).Scan(&count)
	if count != 0 {
		t.Errorf("trial rows after hard delete = %d, want 0", count)
	}
	if _, err := database.GetSession(token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("GetSession after hard delete = %v, want ErrSessionNotFound", err)
	}

	// Idempotent.
	if err := database.HardDeleteParticipant(p.ID); err != nil {
		t.Errorf("repeated HardDeleteParticipant() error: %v", err)
	}
}

func TestInsertCPSSummary(t *testing.T) {
	database := getTestDB(t)

	p, _ := database.GetOrCreateParticipant("Frank")
	err := database.InsertCPSSummary(p.ID, CPSSummary{Sets: [4]int{37, 40, 38, 25}, DurationSec: 10})
	if err != nil {
		t.Fatalf("InsertCPSSummary() error: %v", err)
	}

	var set1, duration int
	database.conn.QueryRow("SELECT set1, duration_sec FROM cps_sessions WHERE participant_id = $1", p.ID).Scan(&set1, &duration)
	if set1 != 37 || duration != 10 {
		t.Errorf("stored cps row = set1 %d duration %d, want 37 and 10", set1, duration)
	}
}
