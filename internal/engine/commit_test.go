package engine_test

import (
	"testing"
	"time"

	"gymgate/internal/engine"
)

// resolveEntitlement resolves and fails the test unless resolution yields a
// unique entitlement.
func resolveEntitlement(t *testing.T, env testEnv, personID string) engine.Entitlement {
	t.Helper()
	r, err := env.Engine.Resolve(env.Ctx, personID, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Entitlement == nil {
		t.Fatalf("expected unique entitlement, got %+v", r)
	}
	return *r.Entitlement
}

func TestCommitReservationAtMostOnce(t *testing.T) {
	env := newTestEnv(t)
	yoga := env.addDiscipline(t, "yoga", true)
	ana := env.addPerson(t, "Ana", 1042)
	env.addReservation(t, ana, env.addClass(t, yoga, "Flow", testNow.Add(10*time.Minute)))

	// Two racing requests resolve the same entitlement before either
	// commits. The guarded update lets exactly one through.
	ent := resolveEntitlement(t, env, ana.ID)

	first, err := env.Engine.Commit(env.Ctx, ent, "code:1042")
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if first.Kind != engine.DecisionGranted {
		t.Fatalf("first commit should grant: %+v", first)
	}
	second, err := env.Engine.Commit(env.Ctx, ent, "code:1042")
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if second.Kind != engine.DecisionDenied || second.Denial.Reason != engine.ReasonAlreadyConsumed {
		t.Fatalf("second commit must fail closed with ALREADY_CONSUMED: %+v", second)
	}
	if n := env.attendanceCount(t, ana.ID); n != 1 {
		t.Fatalf("expected exactly 1 attendance row, got %d", n)
	}
}

func TestCommitCreditFloor(t *testing.T) {
	env := newTestEnv(t)
	gym := env.addDiscipline(t, "musculacion", false)
	ana := env.addPerson(t, "Ana", 1042)
	m := env.addMembership(t, ana, gym, 1, false)

	ent := resolveEntitlement(t, env, ana.ID)

	first, err := env.Engine.Commit(env.Ctx, ent, "code:1042")
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if first.Kind != engine.DecisionGranted || *first.Grant.RemainingCredits != 0 {
		t.Fatalf("first commit should grant and leave 0 credits: %+v", first)
	}
	second, err := env.Engine.Commit(env.Ctx, ent, "code:1042")
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if second.Kind != engine.DecisionDenied || second.Denial.Reason != engine.ReasonNoCredits {
		t.Fatalf("second commit must deny with NO_CREDITS: %+v", second)
	}
	after, err := env.Repo.GetMembership(env.Ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.RemainingCredits != 0 {
		t.Fatalf("credits went below zero: %d", after.RemainingCredits)
	}
	if n := env.attendanceCount(t, ana.ID); n != 1 {
		t.Fatalf("expected exactly 1 attendance row, got %d", n)
	}
}

func TestCommitRaceIsAudited(t *testing.T) {
	env := newTestEnv(t)
	yoga := env.addDiscipline(t, "yoga", true)
	ana := env.addPerson(t, "Ana", 1042)
	env.addReservation(t, ana, env.addClass(t, yoga, "Flow", testNow.Add(5*time.Minute)))

	ent := resolveEntitlement(t, env, ana.ID)
	if _, err := env.Engine.Commit(env.Ctx, ent, "code:1042"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Commit(env.Ctx, ent, "code:1042"); err != nil {
		t.Fatal(err)
	}
	entries, err := env.Repo.LatestAccessLog(env.Ctx, 10, 0, ana.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected both attempts logged, got %d rows", len(entries))
	}
	// Newest first.
	if entries[0].Outcome != "denied" || entries[0].Reason != string(engine.ReasonAlreadyConsumed) {
		t.Fatalf("losing attempt not logged as ALREADY_CONSUMED: %+v", entries[0])
	}
	if entries[1].Outcome != "granted" {
		t.Fatalf("winning attempt not logged as granted: %+v", entries[1])
	}
}
