package service

import (
	"context"
	"testing"
	"time"

	"github.com/gundersenerik/swush-manager/internal/config"
	"github.com/gundersenerik/swush-manager/internal/models"
)

func testScheduler(store *stubStore) *SyncScheduler {
	return &SyncScheduler{
		Store: store,
		Config: config.SyncConfig{
			CriticalInterval: 30 * time.Minute,
			RoundStartWindow: 2 * time.Hour,
			DeadlineWindow:   2 * time.Hour,
			RoundEndedWindow: time.Hour,
		},
	}
}

func TestIsDue(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}
	ahead := func(d time.Duration) *time.Time {
		ts := now.Add(d)
		return &ts
	}

	tests := []struct {
		name string
		game models.Game
		want bool
	}{
		{
			name: "never synced is always due",
			game: models.Game{SyncIntervalMinutes: 60},
			want: true,
		},
		{
			name: "routine interval not elapsed",
			game: models.Game{SyncIntervalMinutes: 60, LastSyncedAt: ago(40 * time.Minute)},
			want: false,
		},
		{
			name: "routine interval elapsed",
			game: models.Game{SyncIntervalMinutes: 60, LastSyncedAt: ago(61 * time.Minute)},
			want: true,
		},
		{
			name: "zero interval falls back to hourly",
			game: models.Game{LastSyncedAt: ago(59 * time.Minute)},
			want: false,
		},
		{
			name: "deadline approaching tightens cadence",
			game: models.Game{
				SyncIntervalMinutes: 360,
				LastSyncedAt:        ago(40 * time.Minute),
				NextTradeDeadline:   ahead(90 * time.Minute),
			},
			want: true,
		},
		{
			name: "deadline approaching but synced recently",
			game: models.Game{
				SyncIntervalMinutes: 360,
				LastSyncedAt:        ago(20 * time.Minute),
				NextTradeDeadline:   ahead(90 * time.Minute),
			},
			want: false,
		},
		{
			name: "deadline too far for critical cadence",
			game: models.Game{
				SyncIntervalMinutes: 360,
				LastSyncedAt:        ago(40 * time.Minute),
				NextTradeDeadline:   ahead(3 * time.Hour),
			},
			want: false,
		},
		{
			name: "round start approaching",
			game: models.Game{
				SyncIntervalMinutes: 360,
				LastSyncedAt:        ago(35 * time.Minute),
				CurrentRoundStart:   ahead(time.Hour),
			},
			want: true,
		},
		{
			name: "round recently ended",
			game: models.Game{
				SyncIntervalMinutes: 360,
				LastSyncedAt:        ago(35 * time.Minute),
				CurrentRoundEnd:     ago(30 * time.Minute),
			},
			want: true,
		},
		{
			name: "round ended too long ago",
			game: models.Game{
				SyncIntervalMinutes: 360,
				LastSyncedAt:        ago(35 * time.Minute),
				CurrentRoundEnd:     ago(2 * time.Hour),
			},
			want: false,
		},
		{
			name: "deadline already passed is not critical",
			game: models.Game{
				SyncIntervalMinutes: 360,
				LastSyncedAt:        ago(40 * time.Minute),
				NextTradeDeadline:   ago(time.Minute),
			},
			want: false,
		},
	}

	s := testScheduler(newStubStore())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.isDue(tc.game, now); got != tc.want {
				t.Fatalf("isDue = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestGamesDueForSyncSkipsInactive(t *testing.T) {
	store := newStubStore()
	store.games = []models.Game{
		{ID: 1, GameKey: "a", IsActive: true},
		{ID: 2, GameKey: "b", IsActive: false},
	}
	s := testScheduler(store)

	due, err := s.GamesDueForSync(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("GamesDueForSync: %v", err)
	}
	if len(due) != 1 || due[0].GameKey != "a" {
		t.Fatalf("due = %+v, want only game a", due)
	}
}

func TestRunDuePassCountsOutcomes(t *testing.T) {
	store := newStubStore()
	store.games = []models.Game{
		{ID: 1, GameKey: "ok-game", Subsite: "dk", IsActive: true},
		{ID: 2, GameKey: "bad-game", Subsite: "dk", IsActive: true},
	}
	api := &fakePartner{game: testGameInfo(), pages: 1}
	o := testOrchestrator(store, api, &fakeNotifier{})
	s := testScheduler(store)
	s.Orchestrator = o

	// The second game never completes metadata because its sync slot is held.
	if !o.acquire(2) {
		t.Fatal("acquire failed")
	}
	defer o.release(2)

	summary, err := s.RunDuePass(context.Background())
	if err != nil {
		t.Fatalf("RunDuePass: %v", err)
	}
	if summary.Due != 2 {
		t.Fatalf("due = %d, want 2", summary.Due)
	}
	if summary.Synced != 1 {
		t.Fatalf("synced = %d, want 1", summary.Synced)
	}
	// An in-flight game is skipped, not failed.
	if summary.Failed != 0 {
		t.Fatalf("failed = %d, want 0", summary.Failed)
	}
}
