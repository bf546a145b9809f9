package services

import (
	"testing"

	"flulance/internal/services/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContacts(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})

	empty, err := env.svc.ContactService.GetContact(env.db, creatorID)
	require.NoError(t, err)
	assert.Equal(t, creatorID, empty.UserID)
	assert.Nil(t, empty.Email)
	assert.Nil(t, empty.UpdatedAt)

	email := "  Creator@Example.COM "
	chatID := int64(424242)
	_, err = env.svc.ContactService.UpdateContact(env.db, creatorID, &dto.UpdateContactRequest{Email: &email, TelegramChatID: &chatID})
	require.NoError(t, err)

	got, err := env.svc.ContactService.GetContact(env.db, creatorID)
	require.NoError(t, err)
	require.NotNil(t, got.Email)
	assert.Equal(t, "creator@example.com", *got.Email)
	require.NotNil(t, got.TelegramChatID)
	assert.Equal(t, chatID, *got.TelegramChatID)

	blank := ""
	env.tick()
	_, err = env.svc.ContactService.UpdateContact(env.db, creatorID, &dto.UpdateContactRequest{Email: &blank})
	require.NoError(t, err)

	got, err = env.svc.ContactService.GetContact(env.db, creatorID)
	require.NoError(t, err)
	assert.Nil(t, got.Email)
	assert.Nil(t, got.TelegramChatID)
}
