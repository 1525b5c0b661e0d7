package conversation

import (
	"context"
	"strings"
	"testing"

	"github.com/sifan077/linkbot/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLink(t *testing.T, h *harness, owner int64, title string) *model.Link {
	t.Helper()
	link := &model.Link{
		OwnerID:     owner,
		OriginalURL: "https://a.example",
		ShortURL:    "https://vk.cc/abc",
		Title:       title,
		ProviderKey: "abc",
	}
	require.NoError(t, h.repo.Save(context.Background(), link))
	return link
}

func TestRename_RejectsLongTitle(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()
	link := seedLink(t, h, testUser, "Old")

	require.NoError(t, h.pipeline.StartRename(ctx, testUser, link.ID, MessageRef{}, h.ui))
	h.send(t, strings.Repeat("x", 101))

	st := h.pipeline.Sessions().Get(testUser)
	require.NotNil(t, st)
	assert.Equal(t, AwaitingRenameTitle, st.Step)
	assert.Contains(t, h.ui.last().Text, ErrTitleTooLong.Error())

	got, err := h.repo.GetByID(ctx, link.ID, testUser)
	require.NoError(t, err)
	assert.Equal(t, "Old", got.Title)
}

func TestRename_Success(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()
	link := seedLink(t, h, testUser, "Old")

	require.NoError(t, h.pipeline.StartRename(ctx, testUser, link.ID, MessageRef{ChatID: testUser, MessageID: 7}, h.ui))
	assert.Equal(t, 1, h.ui.edited)
	h.send(t, "  New title  ")

	assert.Nil(t, h.pipeline.Sessions().Get(testUser))
	got, err := h.repo.GetByID(ctx, link.ID, testUser)
	require.NoError(t, err)
	assert.Equal(t, "New title", got.Title)
	assert.Contains(t, h.ui.last().Text, "Title updated.")
}

func TestRename_ForeignLink(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()
	link := seedLink(t, h, 1000, "Theirs")

	require.NoError(t, h.pipeline.StartRename(ctx, testUser, link.ID, MessageRef{}, h.ui))
	assert.Nil(t, h.pipeline.Sessions().Get(testUser))
	assert.Equal(t, "Link not found.", h.ui.last().Text)
}

func TestRename_CancelShowsLink(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()
	link := seedLink(t, h, testUser, "Keep")

	require.NoError(t, h.pipeline.StartRename(ctx, testUser, link.ID, MessageRef{}, h.ui))
	st, err := h.pipeline.Cancel(ctx, testUser, h.ui)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Contains(t, h.ui.last().Text, "Keep")
}

func TestRename_ReplacesIntake(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()
	link := seedLink(t, h, testUser, "Old")

	h.start(t)
	h.send(t, "https://b.example\nhttps://c.example")
	require.NoError(t, h.pipeline.StartRename(ctx, testUser, link.ID, MessageRef{}, h.ui))

	st := h.pipeline.Sessions().Get(testUser)
	require.NotNil(t, st)
	assert.Equal(t, AwaitingRenameTitle, st.Step)
	assert.Empty(t, st.Pending)
}
