package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackUpdateCarriesMessageContext(t *testing.T) {
	upd, ok := callbackUpdate(&tgbotapi.CallbackQuery{
		Data:    "participate:7",
		Message: &tgbotapi.Message{MessageID: 42, Chat: &tgbotapi.Chat{ID: 777}},
	})
	require.True(t, ok)
	assert.Equal(t, int64(777), upd.ChatID)
	assert.Equal(t, int64(42), upd.MessageID)
	assert.Equal(t, "participate:7", upd.Data)
}

func TestCallbackUpdateWithoutMessageIsDropped(t *testing.T) {
	_, ok := callbackUpdate(&tgbotapi.CallbackQuery{Data: "participate:7"})
	assert.False(t, ok)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/pdf", contentTypeFor("documents/cert.pdf"))
	assert.Equal(t, "image/png", contentTypeFor("photos/cert.png"))
	assert.Equal(t, "image/jpeg", contentTypeFor("photos/cert.jpg"))
	assert.Equal(t, "image/jpeg", contentTypeFor("photos/cert.jpeg"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("documents/cert.bin"))
}
