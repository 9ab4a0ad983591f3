package conversation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"chat-client/internal/models"
)

// Viewport is the scrollable surface the history is rendered into. ScrollHeight must
// reflect the latest render when it is read.
type Viewport interface {
	ScrollHeight() int
	ScrollTop() int
	SetScrollTop(int)
	ScrollToBottom()
}

type nopViewport struct{}

func (nopViewport) ScrollHeight() int { return 0 }
func (nopViewport) ScrollTop() int    { return 0 }
func (nopViewport) SetScrollTop(int)  {}
func (nopViewport) ScrollToBottom()   {}

// fetchTag identifies the conversation a fetch was issued for.
type fetchTag struct {
	conv models.ConversationRef
	gen  uint64
}

// Pager loads history pages into a Store and keeps the reader's scroll anchor.
type Pager struct {
	conv     models.ConversationRef
	api      Backend
	store    *Store
	viewport Viewport
	render   func()
	limit    int
	log      *zap.SugaredLogger

	gen atomic.Uint64

	mu      sync.Mutex
	page    int
	total   int
	loading bool
}

// NewPager constructs a Pager. render is called after every merge that added messages.
func NewPager(conv models.ConversationRef, api Backend, store *Store, viewport Viewport, limit int, render func(), log *zap.SugaredLogger) *Pager {
	if viewport == nil {
		viewport = nopViewport{}
	}
	if render == nil {
		render = func() {}
	}
	return &Pager{
		conv:     conv,
		api:      api,
		store:    store,
		viewport: viewport,
		render:   render,
		limit:    limit,
		log:      log,
	}
}

// LoadInitial fetches the newest page and scrolls to the bottom.
func (p *Pager) LoadInitial(ctx context.Context) (int, error) {
	added, err := p.fetch(ctx, 1)
	if err != nil {
		return 0, err
	}
	p.viewport.ScrollToBottom()
	return added, nil
}

// LoadMore fetches the next older page. The distance from the bottom is captured before
// the fetch and restored after the render, but only when something new arrived. A page
// with nothing new leaves the cursor where it was and returns ErrNoMoreMessages.
func (p *Pager) LoadMore(ctx context.Context) (int, error) {
	p.mu.Lock()
	next := p.page + 1
	p.mu.Unlock()

	fromBottom := p.viewport.ScrollHeight() - p.viewport.ScrollTop()
	added, err := p.fetch(ctx, next)
	if err != nil {
		return 0, err
	}
	if added == 0 {
		return 0, ErrNoMoreMessages
	}
	p.viewport.SetScrollTop(p.viewport.ScrollHeight() - fromBottom)
	return added, nil
}

func (p *Pager) fetch(ctx context.Context, page int) (int, error) {
	p.mu.Lock()
	if p.loading {
		p.mu.Unlock()
		return 0, ErrLoadInProgress
	}
	p.loading = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.loading = false
		p.mu.Unlock()
	}()

	tag := fetchTag{conv: p.conv, gen: p.gen.Load()}
	res, err := p.api.FetchPage(ctx, tag.conv, page, p.limit)
	if !p.current(tag) {
		p.log.Debugw("discarding stale page", "conversation", tag.conv.String(), "page", page)
		return 0, ErrStaleFetch
	}
	if err != nil {
		return 0, fmt.Errorf("fetch page %d: %w", page, err)
	}

	msgs := make([]models.Message, 0, len(res.Messages))
	for _, m := range res.Messages {
		if tag.conv.Owns(m) || m.ConversationID() == "" {
			tag.conv.Stamp(&m)
			msgs = append(msgs, m)
		}
	}
	added := p.store.MergePage(msgs)

	p.mu.Lock()
	p.total = res.Total
	if added > 0 || page == 1 {
		p.page = page
	}
	p.mu.Unlock()

	if added > 0 {
		p.render()
	}
	return added, nil
}

// Invalidate marks every in-flight fetch as stale.
func (p *Pager) Invalidate() {
	p.gen.Add(1)
}

func (p *Pager) current(tag fetchTag) bool {
	return tag.conv == p.conv && tag.gen == p.gen.Load()
}

// Page is the number of the last page that added messages.
func (p *Pager) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

// Remaining is the server total minus the confirmed messages loaded so far.
func (p *Pager) Remaining() int {
	p.mu.Lock()
	total := p.total
	p.mu.Unlock()
	if r := total - p.store.Confirmed(); r > 0 {
		return r
	}
	return 0
}

// ShowLoadMore reports whether a full older page may still exist.
func (p *Pager) ShowLoadMore() bool {
	return p.Remaining() >= p.limit
}
