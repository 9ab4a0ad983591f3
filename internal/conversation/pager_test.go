package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chat-client/internal/mocks"
	"chat-client/internal/models"
)

const rowHeight = 10

// fakeViewport renders every message as one fixed-height row.
type fakeViewport struct {
	store    *Store
	top      int
	sets     int
	bottomed int
}

func (v *fakeViewport) ScrollHeight() int { return v.store.Len() * rowHeight }
func (v *fakeViewport) ScrollTop() int    { return v.top }
func (v *fakeViewport) SetScrollTop(n int) {
	v.top = n
	v.sets++
}
func (v *fakeViewport) ScrollToBottom() {
	v.top = v.ScrollHeight() - rowHeight
	v.bottomed++
}

var task = models.TaskChat("t1")

func page(n, total int, msgs ...models.Message) models.Page {
	return models.Page{Number: n, Limit: 2, Total: total, Messages: msgs}
}

func newTestPager(t *testing.T) (*Pager, *mocks.BackendMock, *fakeViewport, *int) {
	t.Helper()
	backend := new(mocks.BackendMock)
	store := NewStore()
	vp := &fakeViewport{store: store}
	renders := 0
	p := NewPager(task, backend, store, vp, 2, func() { renders++ }, zap.NewNop().Sugar())
	return p, backend, vp, &renders
}

func TestLoadInitialScrollsToBottom(t *testing.T) {
	p, backend, vp, renders := newTestPager(t)
	backend.On("FetchPage", mock.Anything, task, 1, 2).Return(page(1, 5, msg("m4", 4, "d"), msg("m5", 5, "e")), nil).Once()

	added, err := p.LoadInitial(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 1, p.Page())
	assert.Equal(t, 1, vp.bottomed)
	assert.Equal(t, 1, *renders)
	assert.Equal(t, 3, p.Remaining())
	assert.True(t, p.ShowLoadMore())
	backend.AssertExpectations(t)
}

func TestLoadMoreRestoresDistanceFromBottom(t *testing.T) {
	p, backend, vp, _ := newTestPager(t)
	backend.On("FetchPage", mock.Anything, task, 1, 2).Return(page(1, 5, msg("m4", 4, "d"), msg("m5", 5, "e")), nil).Once()
	backend.On("FetchPage", mock.Anything, task, 2, 2).Return(page(2, 5, msg("m2", 2, "b"), msg("m3", 3, "c")), nil).Once()

	_, err := p.LoadInitial(context.Background())
	require.NoError(t, err)
	vp.top = 0

	added, err := p.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 2, p.Page())
	// the reader stays on m4, now two rows further down
	assert.Equal(t, 20, vp.top)
	assert.Equal(t, []string{"m2", "m3", "m4", "m5"}, ids(p.store.Messages()))
	assert.False(t, p.ShowLoadMore())
}

func TestLoadMoreWithoutNewMessagesKeepsCursor(t *testing.T) {
	p, backend, vp, renders := newTestPager(t)
	backend.On("FetchPage", mock.Anything, task, 1, 2).Return(page(1, 2, msg("m1", 1, "a"), msg("m2", 2, "b")), nil).Once()
	backend.On("FetchPage", mock.Anything, task, 2, 2).Return(page(2, 2, msg("m1", 1, "a")), nil).Once()
	backend.On("FetchPage", mock.Anything, task, 2, 2).Return(page(2, 2), nil).Once()

	_, err := p.LoadInitial(context.Background())
	require.NoError(t, err)
	vp.top = 5

	_, err = p.LoadMore(context.Background())
	assert.ErrorIs(t, err, ErrNoMoreMessages)
	_, err = p.LoadMore(context.Background())
	assert.ErrorIs(t, err, ErrNoMoreMessages)

	assert.Equal(t, 1, p.Page())
	assert.Equal(t, 5, vp.top)
	assert.Zero(t, vp.sets)
	assert.Equal(t, 1, *renders)
	backend.AssertExpectations(t)
}

func TestEmptyFirstPageIsNotAnError(t *testing.T) {
	p, backend, _, _ := newTestPager(t)
	backend.On("FetchPage", mock.Anything, task, 1, 2).Return(page(1, 0), nil).Once()

	added, err := p.LoadInitial(context.Background())
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Equal(t, 1, p.Page())
	assert.False(t, p.ShowLoadMore())
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	p, backend, _, renders := newTestPager(t)
	backend.On("FetchPage", mock.Anything, task, 1, 2).
		Run(func(mock.Arguments) { p.Invalidate() }).
		Return(page(1, 1, msg("m1", 1, "a")), nil).Once()

	_, err := p.LoadInitial(context.Background())
	assert.ErrorIs(t, err, ErrStaleFetch)
	assert.Zero(t, p.store.Len())
	assert.Zero(t, *renders)
	assert.Zero(t, p.Page())
}

func TestFetchErrorIsWrapped(t *testing.T) {
	p, backend, _, _ := newTestPager(t)
	backend.On("FetchPage", mock.Anything, task, 1, 2).Return(nil, errors.New("boom")).Once()

	_, err := p.LoadInitial(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch page 1: boom")
}

func TestPageDropsForeignMessages(t *testing.T) {
	p, backend, _, _ := newTestPager(t)
	foreign := msg("x1", 1, "other")
	foreign.TaskID = "t2"
	backend.On("FetchPage", mock.Anything, task, 1, 2).Return(page(1, 2, foreign, msg("m2", 2, "b")), nil).Once()

	added, err := p.LoadInitial(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, []string{"m2"}, ids(p.store.Messages()))
}
