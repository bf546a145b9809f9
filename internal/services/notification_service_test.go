package services

import (
	"encoding/json"
	"testing"

	"flulance/internal/models"
	"flulance/internal/services/dto"
	"flulance/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) emit(t *testing.T, userID, title string) *models.Notification {
	t.Helper()
	n, err := e.svc.NotificationService.Emit(e.db, EmitParams{
		UserID: userID,
		Type:   models.NotificationApplicationReceived,
		Title:  title,
		Link:   "/jobs/1",
		Data:   map[string]string{"job_id": "1"},
	})
	require.NoError(t, err)
	e.tick()
	return n
}

func TestNotifications_ListAndCount(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	a := env.emit(t, creatorID, "first")
	b := env.emit(t, creatorID, "second")
	c := env.emit(t, creatorID, "third")
	env.emit(t, brandID, "someone else's")

	count, err := env.svc.NotificationService.GetUnreadCount(env.db, creatorID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	list, err := env.svc.NotificationService.GetUserNotifications(env.db, creatorID, dto.NotificationCriteria{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, list.Total)
	require.Len(t, list.Notifications, 3)
	assert.Equal(t, []string{c.ID, b.ID, a.ID},
		[]string{list.Notifications[0].ID, list.Notifications[1].ID, list.Notifications[2].ID})

	var data map[string]string
	require.NoError(t, json.Unmarshal(list.Notifications[0].Data, &data))
	assert.Equal(t, "1", data["job_id"])
	require.NotNil(t, list.Notifications[0].Link)

	page, err := env.svc.NotificationService.GetUserNotifications(env.db, creatorID, dto.NotificationCriteria{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	assert.Equal(t, a.ID, page.Notifications[0].ID)
}

func TestNotifications_MarkRead(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	a := env.emit(t, creatorID, "first")
	b := env.emit(t, creatorID, "second")
	foreign := env.emit(t, brandID, "not yours")

	read, err := env.svc.NotificationService.MarkAsRead(env.db, creatorID, a.ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)
	firstReadAt := *read.ReadAt

	env.tick()
	read, err = env.svc.NotificationService.MarkAsRead(env.db, creatorID, a.ID)
	require.NoError(t, err)
	assert.True(t, firstReadAt.Equal(*read.ReadAt), "repeat keeps the original read time")

	_, err = env.svc.NotificationService.MarkAsRead(env.db, creatorID, foreign.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotificationNotFound)
	_, err = env.svc.NotificationService.MarkAsRead(env.db, creatorID, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotificationNotFound)

	unread, err := env.svc.NotificationService.GetUserNotifications(env.db, creatorID, dto.NotificationCriteria{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread.Notifications, 1)
	assert.Equal(t, b.ID, unread.Notifications[0].ID)

	n, err := env.svc.NotificationService.MarkAllAsRead(env.db, creatorID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = env.svc.NotificationService.MarkAllAsRead(env.db, creatorID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	count, err := env.svc.NotificationService.GetUnreadCount(env.db, creatorID)
	require.NoError(t, err)
	assert.Zero(t, count)
	count, err = env.svc.NotificationService.GetUnreadCount(env.db, brandID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestNotifications_EmitRequiresRecipient(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	_, err := env.svc.NotificationService.Emit(env.db, EmitParams{Type: models.NotificationJobClosed, Title: "x"})
	require.Error(t, err)
}
