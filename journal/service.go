// Package journal writes finalized session logs to the database in
// batches, off the battle path.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kasuganosora/mathmon/server/game/record"
	"github.com/kasuganosora/mathmon/server/model"
)

// Options tune batching. Zero values get defaults.
type Options struct {
	Batch      int
	FlushEvery time.Duration
	Queue      int
}

func (o Options) withDefaults() Options {
	if o.Batch <= 0 {
		o.Batch = 100
	}
	if o.FlushEvery <= 0 {
		o.FlushEvery = 2 * time.Second
	}
	if o.Queue <= 0 {
		o.Queue = 1024
	}
	return o
}

// Service logs session summaries asynchronously in batches.
type Service struct {
	db      *gorm.DB
	opts    Options
	ch      chan *model.SessionLog
	flushCh chan chan struct{}
	stopCh  chan struct{}
	stopMu  sync.Once
	wg      sync.WaitGroup
	logger  *zap.Logger
}

// New creates a journal Service and starts its background worker.
func New(db *gorm.DB, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	svc := &Service{
		db:      db,
		opts:    opts,
		ch:      make(chan *model.SessionLog, opts.Queue),
		flushCh: make(chan chan struct{}),
		stopCh:  make(chan struct{}),
		logger:  logger.Named("journal"),
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// ToRow converts a summary into its table row.
func ToRow(s record.Summary) (*model.SessionLog, error) {
	events, err := json.Marshal(s.Events)
	if err != nil {
		return nil, fmt.Errorf("journal: encode events: %w", err)
	}
	return &model.SessionLog{
		RunID:         s.RunID,
		PlayerID:      s.PlayerID,
		Mode:          s.Mode,
		StarterID:     s.StarterID,
		Completed:     s.Completed,
		RoundsCleared: s.RoundsCleared,
		Correct:       s.Correct,
		Wrong:         s.Wrong,
		Accuracy:      s.Accuracy,
		MaxStreak:     s.MaxStreak,
		DamageTaken:   s.DamageTaken,
		DurationMs:    s.Duration.Milliseconds(),
		Events:        datatypes.JSON(events),
		StartedAt:     s.StartedAt,
		EndedAt:       s.EndedAt,
	}, nil
}

// FromRow is the inverse of ToRow.
func FromRow(r *model.SessionLog) (record.Summary, error) {
	s := record.Summary{
		RunID:         r.RunID,
		PlayerID:      r.PlayerID,
		Mode:          r.Mode,
		StarterID:     r.StarterID,
		StartedAt:     r.StartedAt,
		EndedAt:       r.EndedAt,
		Duration:      time.Duration(r.DurationMs) * time.Millisecond,
		Completed:     r.Completed,
		RoundsCleared: r.RoundsCleared,
		Correct:       r.Correct,
		Wrong:         r.Wrong,
		Accuracy:      r.Accuracy,
		MaxStreak:     r.MaxStreak,
		DamageTaken:   r.DamageTaken,
	}
	if len(r.Events) > 0 {
		if err := json.Unmarshal(r.Events, &s.Events); err != nil {
			return s, fmt.Errorf("journal: decode events of %s: %w", r.RunID, err)
		}
	}
	return s, nil
}

// Record enqueues a summary for an async DB write. It never blocks; a full
// queue drops the entry with a warning.
func (svc *Service) Record(s record.Summary) {
	row, err := ToRow(s)
	if err != nil {
		svc.logger.Warn("session not journaled", zap.String("run", s.RunID), zap.Error(err))
		return
	}
	select {
	case <-svc.stopCh:
		svc.logger.Warn("journal stopped, dropping session", zap.String("run", s.RunID))
		return
	default:
	}
	select {
	case svc.ch <- row:
	default:
		svc.logger.Warn("journal queue full, dropping session",
			zap.String("run", s.RunID))
	}
}

// Flush writes everything queued so far and returns once it is committed.
func (svc *Service) Flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case svc.flushCh <- done:
	case <-svc.stopCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// List returns a player's journaled sessions, newest first.
func (svc *Service) List(ctx context.Context, playerID string, limit int) ([]record.Summary, error) {
	var rows []model.SessionLog
	q := svc.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("ended_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("journal: list %s: %w", playerID, err)
	}
	out := make([]record.Summary, 0, len(rows))
	for i := range rows {
		s, err := FromRow(&rows[i])
		if err != nil {
			svc.logger.Warn("skipping corrupt session row", zap.Error(err))
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Prune deletes sessions that ended before cutoff and reports how many
// rows went.
func (svc *Service) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res := svc.db.WithContext(ctx).Where("ended_at < ?", cutoff).Delete(&model.SessionLog{})
	return res.RowsAffected, res.Error
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished or ctx ends.
func (svc *Service) Stop(ctx context.Context) {
	svc.stopMu.Do(func() { close(svc.stopCh) })
	done := make(chan struct{})
	go func() {
		svc.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		svc.logger.Warn("journal stop timed out", zap.Error(ctx.Err()))
	}
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(svc.opts.FlushEvery)
	defer ticker.Stop()

	batch := make([]*model.SessionLog, 0, svc.opts.Batch)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// A run id is written once; replays after a retry are ignored.
		err := svc.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}},
			DoNothing: true,
		}).Create(&batch).Error
		if err != nil {
			svc.logger.Error("session batch write failed", zap.Int("rows", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}
	drain := func() {
		for {
			select {
			case entry := <-svc.ch:
				batch = append(batch, entry)
			default:
				flush()
				return
			}
		}
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= svc.opts.Batch {
				flush()
			}
		case <-ticker.C:
			flush()
		case done := <-svc.flushCh:
			drain()
			close(done)
		case <-svc.stopCh:
			drain()
			return
		}
	}
}
