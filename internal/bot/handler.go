package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/moriyama/linkdigest/internal/extractor"
	"github.com/moriyama/linkdigest/internal/model"
	"github.com/moriyama/linkdigest/internal/repository"
)

// Replier はメッセージへの返信を送るインターフェース。
type Replier interface {
	ReplyMessage(ctx context.Context, messageID, text string) error
}

// LinkValidator はリンクの到達性を検証するインターフェース。
type LinkValidator interface {
	Validate(ctx context.Context, url string) model.ValidationResult
}

// SummaryGenerator はURLの要約を生成するインターフェース。
type SummaryGenerator interface {
	Summarize(ctx context.Context, url string, style model.SummaryStyle) (string, error)
}

// SettingsSource はユーザー設定を解決するインターフェース。
type SettingsSource interface {
	GetUserSetting(ctx context.Context, tenantID, userID string) (*model.UserSetting, error)
}

// MessageHandler は受信メッセージからリンクを収集するパイプラインの入口。
// 抽出・検証・永続化・要約を1リンクずつ順番に処理し、
// 一部のリンクが失敗しても残りの処理を続行する。
type MessageHandler struct {
	extractor  *extractor.Extractor
	validator  LinkValidator
	summarizer SummaryGenerator
	links      repository.LinkRepository
	summaries  repository.SummaryRepository
	replier    Replier
	settings   SettingsSource
	logger     *slog.Logger
	tenantID   string
}

// NewMessageHandler はMessageHandlerの新しいインスタンスを生成する。
// settingsはnil可。nilの場合は常にデフォルトの要約スタイルを使用する。
func NewMessageHandler(
	ext *extractor.Extractor,
	validator LinkValidator,
	summarizer SummaryGenerator,
	links repository.LinkRepository,
	summaries repository.SummaryRepository,
	replier Replier,
	settings SettingsSource,
	logger *slog.Logger,
	tenantID string,
) *MessageHandler {
	return &MessageHandler{
		extractor:  ext,
		validator:  validator,
		summarizer: summarizer,
		links:      links,
		summaries:  summaries,
		replier:    replier,
		settings:   settings,
		logger:     logger,
		tenantID:   tenantID,
	}
}

// textPayload はテキストメッセージのcontentフィールドの構造。
type textPayload struct {
	Text string `json:"text"`
}

// HandleText はテキストメッセージを処理する。
// メッセージからリンクを抽出し、有効なものを収集して件数を返信する。
// リンク単位の失敗はログに記録して続行する。部分的な成功を許容する。
func (h *MessageHandler) HandleText(ctx context.Context, event *model.Event) error {
	var payload textPayload
	if err := json.Unmarshal([]byte(event.Message.Content), &payload); err != nil {
		return fmt.Errorf("メッセージ本文のパースに失敗しました: %w", err)
	}

	// 重複排除はメッセージ単位。前回のメッセージで見たURLは引き継がない
	h.extractor.Reset()
	extracted := h.extractor.Extract(payload.Text)

	if len(extracted) == 0 {
		return h.replier.ReplyMessage(ctx, event.Message.MessageID, "未识别到有效链接")
	}

	style := h.resolveStyle(ctx, event.Sender.SenderID)

	collected := 0
	for _, link := range extracted {
		if h.process(ctx, link, event.Sender.SenderID, style) {
			collected++
		}
	}

	reply := "未识别到有效链接"
	if collected > 0 {
		reply = fmt.Sprintf("已收录 %d 条链接", collected)
	}
	return h.replier.ReplyMessage(ctx, event.Message.MessageID, reply)
}

// HandleImage は画像メッセージを処理する。内容の解析は行わず、受領のみ応答する。
func (h *MessageHandler) HandleImage(ctx context.Context, event *model.Event) error {
	return h.replier.ReplyMessage(ctx, event.Message.MessageID, "收到图片，暂不支持图片内容的收录")
}

// resolveStyle は送信者のユーザー設定から要約スタイルを解決する。
// 設定が引けない場合は空を返し、Summarizerのデフォルトに委ねる。
func (h *MessageHandler) resolveStyle(ctx context.Context, userID string) model.SummaryStyle {
	if h.settings == nil || userID == "" {
		return ""
	}
	setting, err := h.settings.GetUserSetting(ctx, h.tenantID, userID)
	if err != nil {
		h.logger.Warn("ユーザー設定の解決に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return setting.SummaryStyle
}

// process は1リンクの検証・永続化・要約を行う。収集できた場合にtrueを返す。
func (h *MessageHandler) process(ctx context.Context, link model.ExtractedLink, userID string, style model.SummaryStyle) bool {
	result := h.validator.Validate(ctx, link.URL)
	if !result.Valid {
		h.logger.Warn("到達できないリンクをスキップします",
			slog.String("url", link.URL),
			slog.Int("http_status", result.Status),
		)
		return false
	}

	existing, err := h.links.FindByURL(ctx, h.tenantID, link.URL)
	if err != nil {
		h.logger.Error("既存リンクの検索に失敗しました",
			slog.String("url", link.URL),
			slog.String("error", err.Error()),
		)
		return false
	}
	if existing != nil {
		// 収録済み。要約の再生成はしない
		return true
	}

	now := time.Now()
	record := &model.Link{
		ID:        uuid.NewString(),
		URL:       link.URL,
		Platform:  link.Platform,
		Category:  link.Category,
		Title:     result.Title,
		TenantID:  h.tenantID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.links.Create(ctx, record); err != nil {
		h.logger.Error("リンクの永続化に失敗しました",
			slog.String("url", link.URL),
			slog.String("error", err.Error()),
		)
		return false
	}

	summaryText, err := h.summarizer.Summarize(ctx, link.URL, style)
	if err != nil {
		// 要約なしでも収集自体は成立させる
		h.logger.Warn("要約の生成に失敗したため要約なしで収録します",
			slog.String("url", link.URL),
			slog.String("error", err.Error()),
		)
		return true
	}

	recordedStyle := style
	if recordedStyle == "" {
		recordedStyle = model.StyleBullet
	}
	summaryRecord := &model.Summary{
		ID:        uuid.NewString(),
		LinkID:    record.ID,
		Content:   summaryText,
		Style:     recordedStyle,
		TenantID:  h.tenantID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.summaries.Create(ctx, summaryRecord); err != nil {
		h.logger.Error("要約の永続化に失敗しました",
			slog.String("link_id", record.ID),
			slog.String("error", err.Error()),
		)
		return true
	}
	if err := h.links.UpdateSummary(ctx, record.ID, summaryText); err != nil {
		h.logger.Error("リンク要約の反映に失敗しました",
			slog.String("link_id", record.ID),
			slog.String("error", err.Error()),
		)
	}
	return true
}
