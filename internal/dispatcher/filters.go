package dispatcher

import "github.com/moriyama/linkdigest/internal/model"

// BotSenderFilter はボット自身が送信したメッセージを弾く。
// 自分の返信に反応して無限ループに陥ることを防ぐ、常に有効なフィルター。
type BotSenderFilter struct{}

// NewBotSenderFilter はBotSenderFilterを生成する。
func NewBotSenderFilter() *BotSenderFilter {
	return &BotSenderFilter{}
}

// Name はフィルター名を返す。
func (f *BotSenderFilter) Name() string {
	return "bot_sender"
}

// Allow は送信者がボットでない場合にtrueを返す。
func (f *BotSenderFilter) Allow(event *model.Event) (bool, error) {
	switch event.Sender.SenderType {
	case model.SenderTypeBot, model.SenderTypeApp:
		return false, nil
	default:
		return true, nil
	}
}

// ChatAllowListFilter は許可リストに含まれるチャットのメッセージのみ通す。
// リストが空の場合はすべて通す。
type ChatAllowListFilter struct {
	allowed map[string]struct{}
}

// NewChatAllowListFilter はChatAllowListFilterを生成する。
func NewChatAllowListFilter(chatIDs []string) *ChatAllowListFilter {
	allowed := make(map[string]struct{}, len(chatIDs))
	for _, id := range chatIDs {
		allowed[id] = struct{}{}
	}
	return &ChatAllowListFilter{allowed: allowed}
}

// Name はフィルター名を返す。
func (f *ChatAllowListFilter) Name() string {
	return "chat_allow_list"
}

// Allow はチャットが許可リストに含まれる場合にtrueを返す。
func (f *ChatAllowListFilter) Allow(event *model.Event) (bool, error) {
	if len(f.allowed) == 0 {
		return true, nil
	}
	_, ok := f.allowed[event.Message.ChatID]
	return ok, nil
}

// compile-time interface check
var (
	_ Filter = (*BotSenderFilter)(nil)
	_ Filter = (*ChatAllowListFilter)(nil)
)
