// Package dispatcher は受信イベントのフィルタリングとハンドラーへの振り分けを提供する。
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/moriyama/linkdigest/internal/metrics"
	"github.com/moriyama/linkdigest/internal/model"
)

// FilterResult はフィルター評価の3状態。
type FilterResult int

const (
	// FilterPass はイベントを次の段階へ通す。
	FilterPass FilterResult = iota
	// FilterReject はイベントを意図的に破棄する。
	FilterReject
	// FilterError はフィルター自体の失敗。イベントは破棄される。
	FilterError
)

// Filter はイベントを通すかどうかを判定する。
// 判定に失敗した場合はエラーを返す。エラーはディスパッチャーが吸収し、
// 呼び出し元へは伝播しない。
type Filter interface {
	// Name はログ出力用のフィルター名を返す。
	Name() string
	// Allow はイベントを通す場合にtrueを返す。
	Allow(event *model.Event) (bool, error)
}

// Handler はフィルターを通過したイベントを処理する。
type Handler func(ctx context.Context, event *model.Event) error

// Dispatcher は受信イベントをフィルターチェーンに通し、
// メッセージ種別に応じたハンドラーへ振り分ける。
// フィルターは登録順に評価され、最初の非Passで短絡する。
type Dispatcher struct {
	filters  []Filter
	handlers map[string]Handler
	recorder metrics.Recorder
	logger   *slog.Logger
	tenantID string
}

// New はDispatcherの新しいインスタンスを生成する。
func New(recorder metrics.Recorder, logger *slog.Logger, tenantID string) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
		recorder: recorder,
		logger:   logger,
		tenantID: tenantID,
	}
}

// AddFilter はフィルターをチェーンの末尾に追加する。
func (d *Dispatcher) AddFilter(filter Filter) {
	d.filters = append(d.filters, filter)
}

// RegisterHandler はメッセージ種別に対するハンドラーを登録する。
// 同一種別への再登録は上書きとなる。
func (d *Dispatcher) RegisterHandler(messageType string, handler Handler) {
	d.handlers[messageType] = handler
}

// Dispatch はイベントを処理する。メッセージを持たないイベント、
// フィルターで弾かれたイベント、ハンドラー未登録の種別は静かに破棄される。
// ハンドラーのエラーはログとメトリクスに記録され、呼び出し元へは伝播しない。
func (d *Dispatcher) Dispatch(ctx context.Context, event *model.Event) {
	if event == nil || event.Message == nil {
		d.logger.Debug("メッセージを持たないイベントを無視します")
		return
	}

	for _, filter := range d.filters {
		switch d.evaluate(filter, event) {
		case FilterPass:
			continue
		case FilterReject:
			d.logger.Debug("フィルターによりイベントを破棄しました",
				slog.String("filter", filter.Name()),
				slog.String("message_id", event.Message.MessageID),
			)
			d.recorder.RecordMessageProcessed("rejected", d.tenantID, event.Message.MessageType)
			return
		case FilterError:
			d.recorder.RecordMessageProcessed("filter_error", d.tenantID, event.Message.MessageType)
			return
		}
	}

	handler, ok := d.handlers[event.Message.MessageType]
	if !ok {
		d.logger.Debug("未対応のメッセージ種別を無視します",
			slog.String("message_type", event.Message.MessageType),
		)
		return
	}

	if err := handler(ctx, event); err != nil {
		d.logger.Error("イベント処理に失敗しました",
			slog.String("message_type", event.Message.MessageType),
			slog.String("message_id", event.Message.MessageID),
			slog.String("error", err.Error()),
		)
		d.recorder.RecordMessageProcessed("failure", d.tenantID, event.Message.MessageType)
		return
	}

	d.recorder.RecordMessageProcessed("success", d.tenantID, event.Message.MessageType)
}

// evaluate は1つのフィルターを評価し、3状態へ分類する。
// フィルター内のpanicはここで回収され、FilterErrorとして扱う。
func (d *Dispatcher) evaluate(filter Filter, event *model.Event) (result FilterResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("フィルターの評価中にpanicが発生しました",
				slog.String("filter", filter.Name()),
				slog.String("panic", fmt.Sprintf("%v", r)),
			)
			result = FilterError
		}
	}()

	allowed, err := filter.Allow(event)
	if err != nil {
		d.logger.Error("フィルターの評価に失敗しました",
			slog.String("filter", filter.Name()),
			slog.String("error", err.Error()),
		)
		return FilterError
	}
	if !allowed {
		return FilterReject
	}
	return FilterPass
}
