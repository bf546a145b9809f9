package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"testing"

	"flulance/internal/models"
	"flulance/internal/models/chat"
	"flulance/internal/services/dto"
	"flulance/internal/storage"
	"flulance/internal/testutil"
	"flulance/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func pngFile(name string, extra int) *dto.AttachmentFile {
	content := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, extra)...)
	return &dto.AttachmentFile{FileName: name, Size: int64(len(content)), Content: bytes.NewReader(content)}
}

type failingStore struct {
	*storage.MemoryStorage
}

func (f failingStore) Save(ctx context.Context, path string, r io.Reader, contentType string) error {
	return errors.New("bucket unavailable")
}

// blockingStore holds every Save until release is closed.
type blockingStore struct {
	*storage.MemoryStorage
	entered chan struct{}
	release chan struct{}
}

func newBlockingStore() *blockingStore {
	return &blockingStore{
		MemoryStorage: storage.NewMemoryStorage(""),
		entered:       make(chan struct{}, 1),
		release:       make(chan struct{}),
	}
}

func (b *blockingStore) Save(ctx context.Context, path string, r io.Reader, contentType string) error {
	b.entered <- struct{}{}
	<-b.release
	return b.MemoryStorage.Save(ctx, path, r, contentType)
}

// sendSlowAttachment starts an attachment send that parks in the store and
// returns once the upload has begun.
func sendSlowAttachment(t *testing.T, env *testEnv, store *blockingStore, sender, matchID string) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		_, err := env.svc.ChatService.SendMessage(context.Background(), env.db, sender, matchID,
			&dto.SendMessageRequest{Text: "photo"}, pngFile("photo.png", 10))
		done <- err
	}()
	<-store.entered
	return done
}

func (e *testEnv) send(t *testing.T, sender, matchID, text string) *dto.MessageResponse {
	t.Helper()
	msg, err := e.svc.ChatService.SendMessage(context.Background(), e.db, sender, matchID, &dto.SendMessageRequest{Text: text}, nil)
	require.NoError(t, err)
	e.tick()
	return msg
}

func countMessages(t *testing.T, env *testEnv) int64 {
	t.Helper()
	var n int64
	require.NoError(t, env.db.Model(&chat.Message{}).Count(&n).Error)
	return n
}

// Scenario: both participants talk; the log reads back oldest first and the
// recipient's read flag is the only one that moves.
func TestChat_SendListAndRead(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	match := testutil.InsertMatch(t, env.db, brandID, creatorID)

	m1 := env.send(t, brandID, match.ID, "Hi! Welcome aboard")
	m2 := env.send(t, creatorID, match.ID, "Thanks, when do we start?")
	m3 := env.send(t, brandID, match.ID, "  Monday  ")
	assert.Equal(t, "Monday", m3.Text)

	list, err := env.svc.ChatService.ListMessages(env.db, creatorID, match.ID, dto.MessageQuery{})
	require.NoError(t, err)
	require.Len(t, list.Messages, 3)
	assert.Equal(t, []string{m1.ID, m2.ID, m3.ID},
		[]string{list.Messages[0].ID, list.Messages[1].ID, list.Messages[2].ID})
	assert.False(t, list.HasMore)

	// Sender marking their own message: silent no-op.
	res, err := env.svc.ChatService.MarkRead(env.db, brandID, m1.ID)
	require.NoError(t, err)
	assert.False(t, res.IsRead)

	res, err = env.svc.ChatService.MarkRead(env.db, creatorID, m1.ID)
	require.NoError(t, err)
	assert.True(t, res.IsRead)
	require.NotNil(t, res.ReadAt)

	// Idempotent.
	res, err = env.svc.ChatService.MarkRead(env.db, creatorID, m1.ID)
	require.NoError(t, err)
	assert.True(t, res.IsRead)

	_, err = env.svc.ChatService.MarkRead(env.db, outsider, m1.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotMatchParticipant)

	_, err = env.svc.ChatService.MarkRead(env.db, creatorID, "missing")
	assert.ErrorIs(t, err, apperrors.ErrMessageNotFound)

	matchView, err := env.svc.MatchService.GetMatch(env.db, creatorID, match.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, matchView.UnreadCount, "m3 is still unread for the creator")

	updated, err := env.svc.ChatService.MarkMatchRead(env.db, creatorID, match.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, updated)
}

func TestChat_ListWithCursor(t *testing.T) {
	env := newTestEnv(t, ChatConfig{DefaultPageSize: 2})
	match := testutil.InsertMatch(t, env.db, brandID, creatorID)

	var ids []string
	for _, text := range []string{"one", "two", "three", "four", "five"} {
		ids = append(ids, env.send(t, brandID, match.ID, text).ID)
	}

	page, err := env.svc.ChatService.ListMessages(env.db, creatorID, match.ID, dto.MessageQuery{})
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, ids[0], page.Messages[0].ID)

	page, err = env.svc.ChatService.ListMessages(env.db, creatorID, match.ID, dto.MessageQuery{After: ids[1], Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Messages, 3)
	assert.False(t, page.HasMore)
	assert.Equal(t, ids[2], page.Messages[0].ID)
	assert.Equal(t, ids[4], page.Messages[2].ID)

	page, err = env.svc.ChatService.ListMessages(env.db, creatorID, match.ID, dto.MessageQuery{After: ids[4]})
	require.NoError(t, err)
	assert.Empty(t, page.Messages)

	_, err = env.svc.ChatService.ListMessages(env.db, creatorID, match.ID, dto.MessageQuery{After: "nope"})
	requireAppError(t, err, apperrors.CodeValidationFailed, http.StatusBadRequest)
}

// Messages created in the same instant still come back in insertion order.
func TestChat_OrderStableWithinSameTimestamp(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	match := testutil.InsertMatch(t, env.db, brandID, creatorID)

	var ids []string
	for i := 0; i < 5; i++ {
		msg, err := env.svc.ChatService.SendMessage(context.Background(), env.db, brandID, match.ID,
			&dto.SendMessageRequest{Text: "same tick"}, nil)
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	list, err := env.svc.ChatService.ListMessages(env.db, brandID, match.ID, dto.MessageQuery{})
	require.NoError(t, err)
	var got []string
	for _, m := range list.Messages {
		got = append(got, m.ID)
	}
	assert.Equal(t, ids, got)
}

// A slow upload that started first but commits last must still show up after
// the cursor of a poller that already saw the later message.
func TestChat_CursorFollowsCommitOrder(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	store := newBlockingStore()
	env.svc.ChatService = NewChatService(env.repos.Chat, env.repos.Matches, store, env.clock, ChatConfig{})
	match := testutil.InsertMatch(t, env.db, brandID, creatorID)

	slow := sendSlowAttachment(t, env, store, creatorID, match.ID)
	quick := env.send(t, brandID, match.ID, "any update?")

	seen, err := env.svc.ChatService.ListMessages(env.db, brandID, match.ID, dto.MessageQuery{})
	require.NoError(t, err)
	require.Len(t, seen.Messages, 1)
	assert.Equal(t, quick.ID, seen.Messages[0].ID)

	close(store.release)
	require.NoError(t, <-slow)

	next, err := env.svc.ChatService.ListMessages(env.db, brandID, match.ID, dto.MessageQuery{After: quick.ID})
	require.NoError(t, err)
	require.Len(t, next.Messages, 1)
	assert.Equal(t, "photo", next.Messages[0].Text)
	assert.EqualValues(t, 1, quick.Seq)
	assert.EqualValues(t, 2, next.Messages[0].Seq)

	// Every reader sees the same order.
	all, err := env.svc.ChatService.ListMessages(env.db, creatorID, match.ID, dto.MessageQuery{})
	require.NoError(t, err)
	require.Len(t, all.Messages, 2)
	assert.Equal(t, quick.ID, all.Messages[0].ID)
	assert.Equal(t, "photo", all.Messages[1].Text)
}

// The match status is checked again when the message row is written, so an
// upload in flight while the match completes is refused and cleaned up.
func TestChat_CompletedDuringUpload(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	store := newBlockingStore()
	env.svc.ChatService = NewChatService(env.repos.Chat, env.repos.Matches, store, env.clock, ChatConfig{})
	match := testutil.InsertMatch(t, env.db, brandID, creatorID)

	slow := sendSlowAttachment(t, env, store, creatorID, match.ID)
	_, err := env.svc.MatchService.Complete(env.db, brandID, match.ID)
	require.NoError(t, err)

	close(store.release)
	appErr := requireAppError(t, <-slow, apperrors.CodeInvalidStatus, http.StatusConflict)
	assert.Equal(t, "completed", currentStatus(t, appErr))
	assert.EqualValues(t, 0, countMessages(t, env))
	assert.Equal(t, 0, store.Len())
}

func TestChat_SendGuards(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	match := testutil.InsertMatch(t, env.db, brandID, creatorID)
	ctx := context.Background()

	_, err := env.svc.ChatService.SendMessage(ctx, env.db, brandID, "missing", &dto.SendMessageRequest{Text: "x"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrMatchNotFound)

	_, err = env.svc.ChatService.SendMessage(ctx, env.db, outsider, match.ID, &dto.SendMessageRequest{Text: "x"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrNotMatchParticipant)

	_, err = env.svc.ChatService.SendMessage(ctx, env.db, brandID, match.ID, &dto.SendMessageRequest{Text: "   "}, nil)
	assert.ErrorIs(t, err, apperrors.ErrEmptyMessage)

	_, err = env.svc.ChatService.SendMessage(ctx, env.db, brandID, match.ID,
		&dto.SendMessageRequest{Text: strings.Repeat("a", maxMessageLength+1)}, nil)
	requireAppError(t, err, apperrors.CodeValidationFailed, http.StatusBadRequest)

	_, err = env.svc.ChatService.ListMessages(env.db, outsider, match.ID, dto.MessageQuery{})
	assert.ErrorIs(t, err, apperrors.ErrNotMatchParticipant)

	assert.EqualValues(t, 0, countMessages(t, env))
}

func TestChat_AttachmentOnly(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	match := testutil.InsertMatch(t, env.db, brandID, creatorID)
	ctx := context.Background()

	msg, err := env.svc.ChatService.SendMessage(ctx, env.db, creatorID, match.ID,
		&dto.SendMessageRequest{}, pngFile("../../draft\x00.png", 100))
	require.NoError(t, err)
	require.NotNil(t, msg.Attachment)
	assert.Equal(t, models.AttachmentKindImage, msg.Attachment.Kind)
	assert.Equal(t, "image/png", msg.Attachment.MimeType)
	assert.Equal(t, "draft.png", msg.Attachment.FileName)
	assert.EqualValues(t, len(pngHeader)+100, msg.Attachment.Size)
	assert.Equal(t, "/api/v1/attachments/"+msg.Attachment.ID, msg.Attachment.URL)
	assert.Equal(t, 1, env.store.Len())

	content, err := env.svc.ChatService.GetAttachment(ctx, env.db, brandID, msg.Attachment.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(content.Body)
	require.NoError(t, err)
	require.NoError(t, content.Body.Close())
	assert.Equal(t, pngHeader, body[:len(pngHeader)])

	_, err = env.svc.ChatService.GetAttachment(ctx, env.db, outsider, msg.Attachment.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotMatchParticipant)

	url, err := env.svc.ChatService.GetAttachmentURL(ctx, env.db, brandID, msg.Attachment.ID, 0)
	require.NoError(t, err)
	assert.Contains(t, url, "attachments/"+match.ID)

	list, err := env.svc.ChatService.ListMessages(env.db, brandID, match.ID, dto.MessageQuery{})
	require.NoError(t, err)
	require.Len(t, list.Messages, 1)
	require.NotNil(t, list.Messages[0].Attachment)
	assert.Equal(t, msg.Attachment.ID, list.Messages[0].Attachment.ID)
}

func TestChat_ImageDimensions(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	match := testutil.InsertMatch(t, env.db, brandID, creatorID)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 64, 48))))
	file := &dto.AttachmentFile{FileName: "frame.png", Size: int64(buf.Len()), Content: bytes.NewReader(buf.Bytes())}

	msg, err := env.svc.ChatService.SendMessage(context.Background(), env.db, brandID, match.ID, &dto.SendMessageRequest{}, file)
	require.NoError(t, err)
	require.NotNil(t, msg.Attachment.Width)
	require.NotNil(t, msg.Attachment.Height)
	assert.Equal(t, 64, *msg.Attachment.Width)
	assert.Equal(t, 48, *msg.Attachment.Height)

	// A header too short to parse still uploads, just without dimensions.
	msg, err = env.svc.ChatService.SendMessage(context.Background(), env.db, brandID, match.ID, &dto.SendMessageRequest{}, pngFile("stub.png", 0))
	require.NoError(t, err)
	assert.Nil(t, msg.Attachment.Width)
}

func TestChat_DocumentKindAndTypeFilter(t *testing.T) {
	env := newTestEnv(t, ChatConfig{AllowedTypes: []string{"image/", "application/pdf"}})
	match := testutil.InsertMatch(t, env.db, brandID, creatorID)
	ctx := context.Background()

	pdf := []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n")
	msg, err := env.svc.ChatService.SendMessage(ctx, env.db, brandID, match.ID, &dto.SendMessageRequest{Text: "brief"},
		&dto.AttachmentFile{FileName: "brief.pdf", Size: int64(len(pdf)), Content: bytes.NewReader(pdf)})
	require.NoError(t, err)
	assert.Equal(t, models.AttachmentKindDocument, msg.Attachment.Kind)
	assert.Equal(t, "brief", msg.Text)

	exe := []byte("MZ\x90\x00\x03\x00\x00\x00\x04\x00\x00\x00\xff\xff")
	_, err = env.svc.ChatService.SendMessage(ctx, env.db, brandID, match.ID, &dto.SendMessageRequest{},
		&dto.AttachmentFile{FileName: "setup.exe", Size: int64(len(exe)), Content: bytes.NewReader(exe)})
	assert.ErrorIs(t, err, apperrors.ErrFileTypeNotAllowed)
	assert.Equal(t, 1, env.store.Len())
}

func TestChat_PayloadTooLarge(t *testing.T) {
	env := newTestEnv(t, ChatConfig{MaxAttachmentSize: 64})
	match := testutil.InsertMatch(t, env.db, brandID, creatorID)
	ctx := context.Background()

	// Declared size over the limit.
	_, err := env.svc.ChatService.SendMessage(ctx, env.db, brandID, match.ID, &dto.SendMessageRequest{}, pngFile("big.png", 100))
	requireAppError(t, err, apperrors.CodeLimitExceeded, http.StatusRequestEntityTooLarge)

	// Declared size lies; the bytes read are what count.
	file := pngFile("big.png", 100)
	file.Size = 10
	_, err = env.svc.ChatService.SendMessage(ctx, env.db, brandID, match.ID, &dto.SendMessageRequest{}, file)
	requireAppError(t, err, apperrors.CodeLimitExceeded, http.StatusRequestEntityTooLarge)

	assert.Equal(t, 0, env.store.Len())
	assert.EqualValues(t, 0, countMessages(t, env))
}

func TestChat_StoreFailureIsRetryableAndPersistsNothing(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	env.svc.ChatService = NewChatService(env.repos.Chat, env.repos.Matches,
		failingStore{storage.NewMemoryStorage("")}, env.clock, ChatConfig{})
	match := testutil.InsertMatch(t, env.db, brandID, creatorID)

	_, err := env.svc.ChatService.SendMessage(context.Background(), env.db, brandID, match.ID,
		&dto.SendMessageRequest{Text: "see attached"}, pngFile("a.png", 10))
	appErr := requireAppError(t, err, apperrors.CodeExternalServiceError, http.StatusServiceUnavailable)
	assert.Equal(t, map[string]bool{"retryable": true}, appErr.Details)
	assert.EqualValues(t, 0, countMessages(t, env))
}

func TestChat_DatabaseFailureRemovesStoredObject(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	match := testutil.InsertMatch(t, env.db, brandID, creatorID)
	require.NoError(t, env.db.Migrator().DropTable(&chat.MessageAttachment{}))

	_, err := env.svc.ChatService.SendMessage(context.Background(), env.db, brandID, match.ID,
		&dto.SendMessageRequest{Text: "see attached"}, pngFile("a.png", 10))
	requireAppError(t, err, apperrors.CodeInternalError, http.StatusInternalServerError)

	assert.Equal(t, 0, env.store.Len())
	assert.EqualValues(t, 0, countMessages(t, env), "message insert rolled back")
}

func TestChat_CompletedMatch(t *testing.T) {
	match := func(env *testEnv) string {
		m := testutil.InsertMatch(t, env.db, brandID, creatorID)
		_, err := env.svc.MatchService.Complete(env.db, brandID, m.ID)
		require.NoError(t, err)
		return m.ID
	}

	closedEnv := newTestEnv(t, ChatConfig{})
	_, err := closedEnv.svc.ChatService.SendMessage(context.Background(), closedEnv.db, creatorID, match(closedEnv),
		&dto.SendMessageRequest{Text: "one more thing"}, nil)
	appErr := requireAppError(t, err, apperrors.CodeInvalidStatus, http.StatusConflict)
	assert.Equal(t, "completed", currentStatus(t, appErr))

	openEnv := newTestEnv(t, ChatConfig{AllowAfterCompletion: true})
	_, err = openEnv.svc.ChatService.SendMessage(context.Background(), openEnv.db, creatorID, match(openEnv),
		&dto.SendMessageRequest{Text: "one more thing"}, nil)
	require.NoError(t, err)
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"report.pdf":               "report.pdf",
		"C:\\Users\\me\\photo.jpg": "photo.jpg",
		"/etc/passwd":              "passwd",
		"":                         "file.png",
		"..":                       "file.png",
		"cafe\u0301.png":           "caf\u00e9.png",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeFileName(in, ".png"), "input %q", in)
	}
	assert.LessOrEqual(t, len(sanitizeFileName(strings.Repeat("é", 300), ".png")), maxFileNameBytes)
}
