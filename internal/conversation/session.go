package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chat-client/internal/mention"
	"chat-client/internal/models"
	"chat-client/internal/observability"
	"chat-client/internal/ws"
)

var validate = validator.New()

// Options configure one open conversation.
type Options struct {
	Conversation  models.ConversationRef
	Self          models.Self
	PageLimit     int
	TypingTimeout time.Duration
	TypingRate    float64

	Viewport Viewport
	Notifier Notifier

	// OnChange receives the full list after every change.
	OnChange func([]models.Message)
	// OnTyping receives the peer typing state when it flips.
	OnTyping func(bool)
}

// Deps are the collaborators of a Session. Transport and Audit may be nil.
type Deps struct {
	API       Backend
	Transport Transport
	Audit     Auditor
	Log       *zap.SugaredLogger
}

// Attachment is a file sent ahead of the text of a submit.
type Attachment struct {
	Name    string
	Content io.Reader
}

// Session is one open task chat or group chat. It owns its message list; the list
// is discarded on Close.
type Session struct {
	conv models.ConversationRef
	self models.Self
	opts Options

	api       Backend
	transport Transport
	audit     Auditor
	log       *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc

	conn *ws.Conn
	sub  *ws.Subscription

	store     *Store
	pager     *Pager
	typingOut *TypingEmitter
	typingIn  *TypingIndicator
	receipts  *ReadReceipts
	mentions  *mention.Resolver

	mu      sync.RWMutex
	members []models.Member

	submitting atomic.Bool
	closed     atomic.Bool
}

// Open joins the conversation room, loads the roster and the newest page. A socket
// that cannot be reached leaves the session working over REST only.
func Open(ctx context.Context, deps Deps, opts Options) (*Session, error) {
	if !opts.Conversation.Valid() {
		return nil, fmt.Errorf("open conversation: invalid ref %q", opts.Conversation.String())
	}
	if err := validate.Struct(opts.Self); err != nil {
		return nil, fmt.Errorf("open conversation: %w", err)
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = 20
	}
	if opts.TypingTimeout <= 0 {
		opts.TypingTimeout = 3 * time.Second
	}
	if opts.TypingRate <= 0 {
		opts.TypingRate = 1
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.OnChange == nil {
		opts.OnChange = func([]models.Message) {}
	}
	if deps.Audit == nil {
		deps.Audit = nopAuditor{}
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop().Sugar()
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		conv:      opts.Conversation,
		self:      opts.Self,
		opts:      opts,
		api:       deps.API,
		transport: deps.Transport,
		audit:     deps.Audit,
		log:       deps.Log.With("conversation", opts.Conversation.String()),
		ctx:       sctx,
		cancel:    cancel,
		store:     NewStore(),
	}
	s.pager = NewPager(s.conv, s.api, s.store, opts.Viewport, opts.PageLimit, s.changed, s.log)
	s.typingOut = NewTypingEmitter(s.emitTyping, opts.TypingTimeout, opts.TypingRate)
	s.typingIn = NewTypingIndicator(opts.TypingTimeout, opts.OnTyping)
	s.receipts = NewReadReceipts(sctx, s.conv, s.self, s.api, s.log)

	members, err := s.api.Members(sctx, s.conv)
	if err != nil {
		s.log.Warnw("roster unavailable, mentions disabled", "error", err)
	}
	s.members = members
	s.mentions = mention.NewResolver(s.self.ID, members)

	if s.transport != nil {
		conn, err := s.transport.Acquire(sctx)
		if err != nil {
			s.log.Warnw("socket unavailable, continuing over REST", "error", err)
		} else {
			s.conn = conn
			s.sub = conn.Join(s.conv.Room(), s.onFrame)
		}
	}

	if _, err := s.pager.LoadInitial(sctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("load history: %w", err)
	}
	s.changed()
	return s, nil
}

// Conversation is the ref this session was opened for.
func (s *Session) Conversation() models.ConversationRef {
	return s.conv
}

// Messages returns the current list, oldest first.
func (s *Session) Messages() []models.Message {
	return s.store.Messages()
}

// Members returns the roster loaded at open or by the last RefreshMembers.
func (s *Session) Members() []models.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Member(nil), s.members...)
}

// Mentions is the resolver for the compose box. It is not safe for concurrent use.
func (s *Session) Mentions() *mention.Resolver {
	return s.mentions
}

// Connected reports whether the socket is up.
func (s *Session) Connected() bool {
	return s.conn != nil && s.conn.Connected()
}

// PeerTyping reports whether someone else in the room is typing.
func (s *Session) PeerTyping() bool {
	return s.typingIn.Typing()
}

// Keystroke reports local input activity for the typing indicator.
func (s *Session) Keystroke() {
	s.typingOut.Keystroke()
}

// Page is the history cursor.
func (s *Session) Page() int {
	return s.pager.Page()
}

// ShowLoadMore reports whether older history may still exist.
func (s *Session) ShowLoadMore() bool {
	return s.pager.ShowLoadMore()
}

// LoadMore loads the next older page. An exhausted history is reported to the notifier
// as well as returned.
func (s *Session) LoadMore(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, ErrSessionClosed
	}
	ctx, stop := s.bind(ctx)
	defer stop()

	added, err := s.pager.LoadMore(ctx)
	if errors.Is(err, ErrNoMoreMessages) {
		s.opts.Notifier.Notify(Notice{Level: LevelInfo, Text: ErrNoMoreMessages.Error()})
	}
	return added, err
}

// RefreshMembers reloads the roster, including every member's read cursor.
func (s *Session) RefreshMembers(ctx context.Context) error {
	ctx, stop := s.bind(ctx)
	defer stop()

	members, err := s.api.Members(ctx, s.conv)
	if err != nil {
		return fmt.Errorf("refresh members: %w", err)
	}
	s.mu.Lock()
	s.members = members
	s.mu.Unlock()
	s.mentions.SetRoster(members)
	return nil
}

// SeenByAll reports whether every other member's read cursor is at or past the message.
// The author of the message is not required to have read it.
func (s *Session) SeenByAll(messageID string) bool {
	pos := s.store.Position(messageID)
	msg, ok := s.store.Get(messageID)
	if pos < 0 || !ok || msg.Pending {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	others := 0
	for _, m := range s.members {
		if m.ID == s.self.ID || m.ID == msg.Author.ID {
			continue
		}
		others++
		if m.LastMessageReadID == "" || s.store.Position(m.LastMessageReadID) < pos {
			return false
		}
	}
	return others > 0
}

// Submit sends attachments first, each as its own file message, then the text.
// Every message is shown as a placeholder until the server confirms it. Only one
// submit runs at a time; a second one is rejected, not queued.
func (s *Session) Submit(ctx context.Context, content string, attachments ...Attachment) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if !s.submitting.CompareAndSwap(false, true) {
		return ErrSubmitInProgress
	}
	defer s.submitting.Store(false)

	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return ErrEmptyMessage
	}
	s.typingOut.Stop()

	ctx, stop := s.bind(ctx)
	defer stop()

	for _, a := range attachments {
		if err := s.sendFile(ctx, a); err != nil {
			return err
		}
	}
	if strings.TrimSpace(content) != "" {
		if err := s.send(ctx, models.TextBody{Text: content}, s.resolveMentions(content), ""); err != nil {
			return err
		}
	}
	s.mentions.Reset()
	return nil
}

func (s *Session) sendFile(ctx context.Context, a Attachment) error {
	tempID := s.placeholder(models.FileBody{OriginalFilename: a.Name}, nil)

	doc, err := s.api.UploadDocument(ctx, a.Name, a.Content)
	if err != nil {
		s.rollbackCreate(ctx, tempID, "upload "+a.Name, err)
		return fmt.Errorf("upload %s: %w", a.Name, err)
	}
	return s.send(ctx, doc.AsBody(), nil, tempID)
}

// send creates one message. A placeholder is appended first unless tempID names one.
func (s *Session) send(ctx context.Context, body models.Body, mentionIDs []string, tempID string) error {
	if tempID == "" {
		tempID = s.placeholder(body, mentionIDs)
	} else {
		s.store.Update(tempID, func(m *models.Message) { m.Body = body })
		s.changed()
	}

	content, isFile := models.EncodeBody(body)
	req := models.CreateMessageRequest{
		Content:   content,
		AuthorID:  s.self.ID,
		IsFile:    isFile,
		MentionBy: mentionIDs,
	}
	if s.conv.Kind == models.KindGroup {
		req.GroupID = s.conv.ID
	} else {
		req.TaskID = s.conv.ID
	}
	if err := validate.Struct(req); err != nil {
		s.rollbackCreate(ctx, tempID, "invalid message", err)
		return fmt.Errorf("invalid message: %w", err)
	}

	resp, err := s.api.CreateMessage(ctx, s.conv, req)
	if err != nil {
		s.rollbackCreate(ctx, tempID, "send message", err)
		return fmt.Errorf("send message: %w", err)
	}

	confirmed := resp.Data
	if confirmed.Author.ID == s.self.ID && confirmed.Author.Name == "" {
		confirmed.Author = s.self.AsAuthor()
	}
	s.conv.Stamp(&confirmed)
	s.store.Confirm(tempID, confirmed)
	s.changed()

	if s.conn != nil {
		resp.Data = confirmed
		if err := s.conn.Emit(models.EventNewMessage, resp); err != nil {
			s.log.Debugw("new message not broadcast", "message_id", confirmed.ID, "error", err)
		}
	}
	return nil
}

func (s *Session) placeholder(body models.Body, mentionIDs []string) string {
	m := models.Message{
		ID:        "tmp-" + uuid.NewString(),
		Author:    s.self.AsAuthor(),
		Body:      body,
		CreatedAt: time.Now(),
		MentionBy: s.usersFor(mentionIDs),
	}
	s.conv.Stamp(&m)
	s.store.AppendPending(m)
	s.changed()
	return m.ID
}

func (s *Session) rollbackCreate(ctx context.Context, tempID, what string, cause error) {
	s.store.Remove(tempID)
	s.changed()
	observability.IncRollback("create")
	s.opts.Notifier.Notify(Notice{Level: LevelError, Text: "Failed to send message", Err: cause})
	s.audit.Emit(context.WithoutCancel(ctx), "message_send_failed", "error",
		fmt.Sprintf("%s in %s: %v", what, s.conv.String(), cause))
}

// Edit replaces the text of one of the user's own messages. The change shows at once
// and is reverted if the server rejects it.
func (s *Session) Edit(ctx context.Context, messageID, content string) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}
	cur, ok := s.store.Get(messageID)
	if !ok {
		return ErrMessageNotFound
	}
	if cur.Pending || cur.IsFile() || cur.Author.ID != s.self.ID {
		return ErrNotEditable
	}

	ids := s.resolveMentions(content)
	req := models.EditMessageRequest{Content: content, MentionBy: ids}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("invalid edit: %w", err)
	}

	ctx, stop := s.bind(ctx)
	defer stop()

	users := s.usersFor(ids)
	prev, ok := s.store.Update(messageID, func(m *models.Message) {
		m.Body = models.TextBody{Text: content}
		m.MentionBy = users
	})
	if !ok {
		return ErrMessageNotFound
	}
	s.changed()

	resp, err := s.api.EditMessage(ctx, s.conv, messageID, req)
	if err != nil {
		s.store.Restore(prev)
		s.changed()
		observability.IncRollback("edit")
		s.opts.Notifier.Notify(Notice{Level: LevelError, Text: "Failed to edit message", Err: err})
		s.audit.Emit(context.WithoutCancel(ctx), "message_edit_failed", "error",
			fmt.Sprintf("edit %s in %s: %v", messageID, s.conv.String(), err))
		return fmt.Errorf("edit message: %w", err)
	}

	s.store.Update(messageID, func(m *models.Message) {
		edited := resp.Data.EditedAt
		if edited == nil {
			now := time.Now()
			edited = &now
		}
		m.EditedAt = edited
		if resp.Data.Body != nil {
			m.Body = resp.Data.Body
		}
		if resp.Data.MentionBy != nil {
			m.MentionBy = resp.Data.MentionBy
		}
	})
	s.changed()
	return nil
}

// Close leaves the room, stops timers, cancels in-flight requests and releases the
// socket. The message list is discarded with the session.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.typingOut.Close()
	s.typingIn.Close()
	s.pager.Invalidate()
	s.cancel()
	s.receipts.Close()

	if s.sub != nil {
		s.sub.Leave()
	}
	if s.conn != nil && s.transport != nil {
		return s.transport.Release()
	}
	return nil
}

func (s *Session) onFrame(f models.Frame) {
	if s.closed.Load() {
		return
	}
	switch f.Event {
	case models.EventMessageReceived:
		msg, err := models.DecodeReceived(f.Data)
		if err != nil || !s.conv.Owns(msg) {
			return
		}
		if s.store.Merge(msg, SourceSocket) {
			s.changed()
		}
	case models.EventTyping:
		s.typingIn.Start()
	case models.EventStopTyping:
		s.typingIn.Stop()
	}
}

func (s *Session) emitTyping(event string) {
	if s.conn == nil {
		return
	}
	if err := s.conn.Emit(event, s.conv.Room()); err != nil {
		s.log.Debugw("typing event dropped", "event", event, "error", err)
	}
}

// changed publishes the list and moves the read cursor when the newest entry is
// confirmed.
func (s *Session) changed() {
	s.opts.OnChange(s.store.Messages())
	if s.closed.Load() {
		return
	}
	if newest, ok := s.store.Newest(); ok {
		s.receipts.Observe(newest)
	}
}

// bind ties a caller context to the session so Close cancels it.
func (s *Session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Session) resolveMentions(text string) []string {
	s.mu.RLock()
	members := s.members
	s.mu.RUnlock()
	return mention.NewResolver(s.self.ID, members).ResolveIDs(text)
}

func (s *Session) usersFor(ids []string) []models.User {
	if len(ids) == 0 {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		for _, m := range s.members {
			if m.ID == id {
				users = append(users, m.AsUser())
			}
		}
	}
	return users
}
