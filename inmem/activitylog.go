package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/moneta-app/moneta"
)

type ActivityStore struct {
	lastId int64
	logs   map[moneta.UserId][]moneta.ActivityLog
	mutex  sync.RWMutex
}

func NewActivityStore() ActivityStore {
	return ActivityStore{
		lastId: 0,
		logs:   make(map[moneta.UserId][]moneta.ActivityLog),
		mutex:  sync.RWMutex{},
	}
}

var _ moneta.ActivityStore = (*ActivityStore)(nil)

func (s *ActivityStore) AddLog(ctx context.Context, userId moneta.UserId, activity moneta.Activity) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.lastId++
	s.logs[userId] = append(s.logs[userId], moneta.ActivityLog{
		Id:        s.lastId,
		CreatedAt: time.Now(),
		UserId:    userId,
		Name:      activity.Name,
		Data:      activity.Data,
	})
	return nil
}

func (s *ActivityStore) ByUserId(ctx context.Context, userId moneta.UserId, beforeId int64, limit int32) ([]moneta.ActivityLog, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ulogs := s.logs[userId]
	// newest first, mirroring the persistent store ordering
	selected := make([]moneta.ActivityLog, 0, limit)
	for i := len(ulogs) - 1; i >= 0 && len(selected) < int(limit); i-- {
		if beforeId >= 0 && ulogs[i].Id >= beforeId {
			continue
		}
		selected = append(selected, ulogs[i])
	}
	return selected, nil
}
