package service

import (
	"context"
	"sync"

	"github.com/gundersenerik/swush-manager/internal/models"
	"github.com/gundersenerik/swush-manager/internal/repository"
)

// stubStore is an in-memory repository.Store for service tests. Error hooks
// let individual tests fail specific writes.
type stubStore struct {
	mu sync.Mutex

	games      []models.Game
	elements   map[uint64]map[int64]models.Element
	userStats  map[uint64]map[string]models.UserGameStat
	syncLogs   []*models.SyncLog
	finalized  []models.SyncStatus
	triggers   []models.GameTrigger
	trigLogs   []models.TriggerLog
	watermarks map[uint64]int

	elementUpsertCalls int
	upsertElementsErr  func(call int) error
	upsertUserStatsErr func(page int) error
	userUpsertCalls    int
	advanceErr         error
}

func newStubStore() *stubStore {
	return &stubStore{
		elements:   make(map[uint64]map[int64]models.Element),
		userStats:  make(map[uint64]map[string]models.UserGameStat),
		watermarks: make(map[uint64]int),
	}
}

func (s *stubStore) ListActiveGames(ctx context.Context) ([]models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Game, 0, len(s.games))
	for _, g := range s.games {
		if g.IsActive {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *stubStore) GetGameByKey(ctx context.Context, gameKey string) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.games {
		if s.games[i].GameKey == gameKey && s.games[i].IsActive {
			g := s.games[i]
			return &g, nil
		}
	}
	return nil, nil
}

func (s *stubStore) ListGames(ctx context.Context, params repository.ListGamesParams) ([]models.Game, error) {
	return s.ListActiveGames(ctx)
}

func (s *stubStore) UpdateGameSyncState(ctx context.Context, game *models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.games {
		if s.games[i].ID == game.ID {
			s.games[i] = *game
			return nil
		}
	}
	return nil
}

func (s *stubStore) UpsertElements(ctx context.Context, items []models.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elementUpsertCalls++
	if s.upsertElementsErr != nil {
		if err := s.upsertElementsErr(s.elementUpsertCalls); err != nil {
			return err
		}
	}
	for _, el := range items {
		byID := s.elements[el.GameID]
		if byID == nil {
			byID = make(map[int64]models.Element)
			s.elements[el.GameID] = byID
		}
		byID[el.ExternalID] = el
	}
	return nil
}

func (s *stubStore) ListElementsByGameID(ctx context.Context, gameID uint64) ([]models.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Element
	for _, el := range s.elements[gameID] {
		out = append(out, el)
	}
	return out, nil
}

func (s *stubStore) UpsertUserStats(ctx context.Context, items []models.UserGameStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userUpsertCalls++
	if s.upsertUserStatsErr != nil {
		if err := s.upsertUserStatsErr(s.userUpsertCalls); err != nil {
			return err
		}
	}
	for _, stat := range items {
		byUser := s.userStats[stat.GameID]
		if byUser == nil {
			byUser = make(map[string]models.UserGameStat)
			s.userStats[stat.GameID] = byUser
		}
		byUser[stat.ExternalUserID] = stat
	}
	return nil
}

func (s *stubStore) GetUserStat(ctx context.Context, gameID uint64, externalUserID string) (*models.UserGameStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stat, ok := s.userStats[gameID][externalUserID]; ok {
		return &stat, nil
	}
	return nil, nil
}

func (s *stubStore) ListUserStats(ctx context.Context, params repository.ListUserStatsParams) ([]models.UserGameStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.UserGameStat
	for _, stat := range s.userStats[params.GameID] {
		out = append(out, stat)
	}
	return out, nil
}

func (s *stubStore) CountUserStats(ctx context.Context, gameID uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.userStats[gameID])), nil
}

func (s *stubStore) CreateSyncLog(ctx context.Context, item *models.SyncLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = uint64(len(s.syncLogs) + 1)
	s.syncLogs = append(s.syncLogs, item)
	return nil
}

// FinalizeSyncLog honors ctx like the real store: an expired context means
// the terminal status was never persisted.
func (s *stubStore) FinalizeSyncLog(ctx context.Context, item *models.SyncLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = append(s.finalized, item.Status)
	return nil
}

func (s *stubStore) ListSyncLogs(ctx context.Context, gameID uint64, limit int) ([]models.SyncLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SyncLog
	for _, l := range s.syncLogs {
		if gameID == 0 || l.GameID == gameID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *stubStore) ListActiveTriggers(ctx context.Context, gameID uint64) ([]models.GameTrigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.GameTrigger
	for _, trig := range s.triggers {
		if trig.GameID == gameID && trig.IsActive {
			if round, ok := s.watermarks[trig.ID]; ok {
				r := round
				trig.LastTriggeredRound = &r
			}
			out = append(out, trig)
		}
	}
	return out, nil
}

func (s *stubStore) AdvanceTriggerWatermark(ctx context.Context, triggerID uint64, round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.advanceErr != nil {
		return s.advanceErr
	}
	s.watermarks[triggerID] = round
	return nil
}

func (s *stubStore) CreateTriggerLog(ctx context.Context, item *models.TriggerLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = uint64(len(s.trigLogs) + 1)
	s.trigLogs = append(s.trigLogs, *item)
	return nil
}

func (s *stubStore) ListTriggerLogs(ctx context.Context, gameID uint64, limit int) ([]models.TriggerLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TriggerLog
	for _, l := range s.trigLogs {
		if gameID == 0 || l.GameID == gameID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *stubStore) lastSyncLog() *models.SyncLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.syncLogs) == 0 {
		return nil
	}
	return s.syncLogs[len(s.syncLogs)-1]
}

var _ repository.Store = (*stubStore)(nil)
