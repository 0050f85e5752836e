// Package scheduler は日次ジョブのスケジュール実行を提供する。
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler はcron式に基づくジョブ実行を管理する。
// 実行の排他制御は行わない。ジョブが次回の発火時刻を跨いで実行され続けた
// 場合は同時実行となるため、ジョブ側は冪等であることが望ましい。
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// New はSchedulerの新しいインスタンスを生成する。
func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
	}
}

// ScheduleDaily は毎日hour:minuteにジョブを登録する。
func (s *Scheduler) ScheduleDaily(hour, minute int, name string, job func()) error {
	spec := fmt.Sprintf("%d %d * * *", minute, hour)
	if _, err := s.cron.AddFunc(spec, job); err != nil {
		return fmt.Errorf("ジョブの登録に失敗しました: %w", err)
	}

	s.logger.Info("日次ジョブを登録しました",
		slog.String("job", name),
		slog.String("schedule", fmt.Sprintf("%02d:%02d", hour, minute)),
	)
	return nil
}

// Start はスケジューラーを開始する。ジョブは専用ゴルーチンで実行される。
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop はスケジューラーを停止し、実行中のジョブの完了を待つcontextを返す。
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
