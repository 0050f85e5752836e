package model

// MessageType はチャットメッセージの種別。
const (
	// MessageTypeText はテキストメッセージ。
	MessageTypeText = "text"
	// MessageTypeImage は画像メッセージ。
	MessageTypeImage = "image"
)

// SenderType は送信者の種別。
const (
	// SenderTypeUser は人間のユーザー。
	SenderTypeUser = "user"
	// SenderTypeBot はボット。
	SenderTypeBot = "bot"
	// SenderTypeApp はアプリケーション。
	SenderTypeApp = "app"
)

// Sender はイベントの送信者情報。
type Sender struct {
	SenderID   string
	SenderType string
}

// Message はチャットメッセージの本体。
// Contentはプラットフォーム固有のJSON文字列（例: {"text":"..."}）。
type Message struct {
	MessageID   string
	ChatID      string
	MessageType string
	Content     string
}

// Event は受信したチャットイベント。
// Messageがnilのイベントは処理対象外として無視される。
type Event struct {
	TenantKey string
	Sender    Sender
	Message   *Message
}
