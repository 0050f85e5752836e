package scheduler

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestScheduleDaily_RegistersJob(t *testing.T) {
	var buf bytes.Buffer
	s := New(newTestLogger(&buf))

	if err := s.ScheduleDaily(20, 0, "daily_digest", func() {}); err != nil {
		t.Fatalf("ScheduleDaily がエラーを返した: %v", err)
	}

	if !strings.Contains(buf.String(), "20:00") {
		t.Errorf("登録ログにスケジュール時刻が含まれていない: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "daily_digest") {
		t.Errorf("登録ログにジョブ名が含まれていない: %s", buf.String())
	}
}

func TestScheduleDaily_InvalidTime(t *testing.T) {
	var buf bytes.Buffer
	s := New(newTestLogger(&buf))

	if err := s.ScheduleDaily(25, 0, "bad", func() {}); err == nil {
		t.Error("不正な時刻でエラーを返さなかった")
	}
}

func TestStartStop(t *testing.T) {
	var buf bytes.Buffer
	s := New(newTestLogger(&buf))

	if err := s.ScheduleDaily(3, 30, "noop", func() {}); err != nil {
		t.Fatalf("ScheduleDaily がエラーを返した: %v", err)
	}

	s.Start()
	ctx := s.Stop()

	// Stopのcontextはバックグラウンドでキャンセルされるため完了を待つ
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Error("実行中ジョブがないのにStopのcontextが完了しない")
	}
}
