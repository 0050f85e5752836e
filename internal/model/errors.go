package model

import "fmt"

// PipelineError はパイプライン内の統一エラーフォーマットを表す。
// 各I/O境界はあらゆる失敗を操作ごとに1つのエラー形状へ正規化する。
type PipelineError struct {
	Code    string // エラーコード
	Message string // エラーメッセージ
	Err     error  // 原因となったエラー（ない場合はnil）
}

// Error はerrorインターフェースを実装する。
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。errors.Is/Asによる検査に対応する。
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeFetchFailed      = "CONTENT_FETCH_FAILED"
	ErrCodeGenerationFailed = "GENERATION_FAILED"
	ErrCodeDeliveryFailed   = "DELIVERY_FAILED"
)

// NewFetchFailedError はコンテンツ取得失敗エラーを生成する。
// ContentFetcher層ではリトライしない。リトライは呼び出し元の責務。
func NewFetchFailedError(url string, cause error) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeFetchFailed,
		Message: fmt.Sprintf("コンテンツの取得に失敗しました: %s", url),
		Err:     cause,
	}
}

// NewGenerationFailedError はAI生成失敗エラーを生成する。
// 上流のあらゆる失敗（HTTP・レスポンス形式・空応答）をこの1形状に正規化する。
func NewGenerationFailedError(operation string, cause error) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeGenerationFailed,
		Message: fmt.Sprintf("AI生成に失敗しました: %s", operation),
		Err:     cause,
	}
}

// NewDeliveryFailedError はメッセージ配信失敗エラーを生成する。
func NewDeliveryFailedError(chatID string, cause error) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeDeliveryFailed,
		Message: fmt.Sprintf("メッセージの配信に失敗しました: chat_id=%s", chatID),
		Err:     cause,
	}
}
