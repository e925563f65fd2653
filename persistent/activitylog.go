package persistent

import (
	"context"
	"fmt"
	"time"

	"github.com/moneta-app/moneta"
	"github.com/uptrace/bun"
)

type ActivityLog struct {
	bun.BaseModel `bun:"table:activity_log"`

	Id        int64                  `bun:",pk,autoincrement"`
	CreatedAt time.Time              `bun:",nullzero,notnull,default:current_timestamp"`
	UserUid   string                 `bun:",notnull"`
	Name      string                 `bun:",notnull"`
	Data      map[string]interface{} `bun:",notnull"`
}

func (l *ActivityLog) ToDomain() moneta.ActivityLog {
	return moneta.ActivityLog{
		Id:        l.Id,
		CreatedAt: l.CreatedAt,
		UserId:    moneta.UserId(l.UserUid),
		Name:      l.Name,
		Data:      l.Data,
	}
}

type ActivityStore struct {
	DB *bun.DB
}

var _ moneta.ActivityStore = (*ActivityStore)(nil)

func (s *ActivityStore) AddLog(ctx context.Context, userId moneta.UserId, activity moneta.Activity) error {
	_, err := s.DB.NewInsert().
		Model(&ActivityLog{
			UserUid: string(userId),
			Name:    activity.Name,
			Data:    activity.Data,
		}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

func (s *ActivityStore) ByUserId(ctx context.Context, userId moneta.UserId, beforeId int64, limit int32) ([]moneta.ActivityLog, error) {
	var models []ActivityLog
	query := s.DB.NewSelect().
		Model(&models).
		Where("user_uid=?", string(userId)).
		OrderExpr("id DESC").
		Limit(int(limit))
	if beforeId >= 0 {
		query = query.Where("id<?", beforeId)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("select activity logs: %w", err)
	}

	logs := make([]moneta.ActivityLog, len(models))
	for i := range models {
		logs[i] = models[i].ToDomain()
	}
	return logs, nil
}
