package bot

import "context"

// Choice is one labelled button; Data is the opaque callback payload echoed
// back on selection.
type Choice struct {
	Label string
	Data  string
}

// Effector is the outbound side of the conversational transport. The bot core
// emits three effect kinds and never talks to a messenger API directly.
type Effector interface {
	Send(ctx context.Context, chatID int64, text string) error
	SendChoices(ctx context.Context, chatID int64, text string, choices [][]Choice) error
	Edit(ctx context.Context, chatID int64, messageID int64, text string, choices [][]Choice) error
}

// TextUpdate is free text typed by the conversant.
type TextUpdate struct {
	ChatID   int64
	Username string
	Text     string
}

// FileUpdate is an uploaded document with the transport's metadata.
type FileUpdate struct {
	ChatID   int64
	FileID   string
	FileName string
	MimeType string
	Size     int64
}

// ChoiceUpdate is a pressed button carrying its opaque payload.
type ChoiceUpdate struct {
	ChatID    int64
	MessageID int64
	Data      string
}
