package model

// ChatModel identifies a generation model the chat endpoint may use.
// The set is closed: anything not listed here is rejected at the boundary.
type ChatModel string

const (
	ChatModelGeminiPro   ChatModel = "gemini-1.5-pro"
	ChatModelGeminiFlash ChatModel = "gemini-1.5-flash"
)

// DefaultChatModel is used when a chat request omits the model field.
const DefaultChatModel = ChatModelGeminiFlash

var chatModels = map[ChatModel]struct{}{
	ChatModelGeminiPro:   {},
	ChatModelGeminiFlash: {},
}

// Valid reports whether m is one of the supported model identifiers.
func (m ChatModel) Valid() bool {
	_, ok := chatModels[m]
	return ok
}

func (m ChatModel) String() string { return string(m) }
