package testutil

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"chat-client/internal/models"
)

func (s *Server) routes(r *gin.Engine) {
	r.GET("/comment/:id", s.history(models.KindTask))
	r.GET("/groupMessage/:id", s.history(models.KindGroup))
	r.POST("/comment", s.createMessage(models.KindTask))
	r.POST("/groupMessage", s.createMessage(models.KindGroup))
	r.PATCH("/comment/:id", s.editMessage(models.KindTask))
	r.PATCH("/groupMessage/:id", s.editMessage(models.KindGroup))
	r.POST("/task/readcomment", s.markRead(models.KindTask))
	r.POST("/group/updatereadmessage", s.markRead(models.KindGroup))
	r.GET("/task/:id/members", s.listMembers(models.KindTask))
	r.GET("/group/:id/members", s.listMembers(models.KindGroup))
	r.POST("/documents", s.uploadDocument)
	r.GET("/socket", s.Hub.Serve)
}

// history serves newest-last pages counted from the newest message.
func (s *Server) history(kind models.ConversationKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.fail(c, "history") {
			return
		}
		page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
		if err != nil || page < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid page"})
			return
		}
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid limit"})
			return
		}

		conv := models.ConversationRef{Kind: kind, ID: c.Param("id")}
		s.mu.Lock()
		all := s.messages[key(conv)]
		end := len(all) - (page-1)*limit
		start := end - limit
		if start < 0 {
			start = 0
		}
		data := []models.Message{}
		if end > 0 {
			data = append(data, all[start:end]...)
		}
		total := len(all)
		s.mu.Unlock()

		c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "total": total})
	}
}

func (s *Server) createMessage(kind models.ConversationKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.fail(c, "create") {
			return
		}
		var req models.CreateMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
			return
		}
		conv := models.TaskChat(req.TaskID)
		if kind == models.KindGroup {
			conv = models.GroupChat(req.GroupID)
		}
		if !conv.Valid() || req.Content == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "content and conversation are required"})
			return
		}

		s.mu.Lock()
		s.seq++
		id := fmt.Sprintf("srv-%d", s.seq)
		if len(s.nextIDs) > 0 {
			id, s.nextIDs = s.nextIDs[0], s.nextIDs[1:]
		}
		msg := models.Message{
			ID:        id,
			Author:    s.authorLocked(conv, req.AuthorID),
			Body:      models.DecodeBody(req.Content, req.IsFile),
			CreatedAt: time.Now().UTC(),
			MentionBy: s.usersLocked(conv, req.MentionBy),
			SeenBy:    []models.User{},
		}
		conv.Stamp(&msg)
		s.messages[key(conv)] = append(s.messages[key(conv)], msg)
		hook := s.createHook
		s.mu.Unlock()

		if hook != nil {
			hook(msg)
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "data": msg})
	}
}

func (s *Server) editMessage(kind models.ConversationKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.fail(c, "edit") {
			return
		}
		var req models.EditMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
			return
		}

		id := c.Param("id")
		s.mu.Lock()
		defer s.mu.Unlock()
		for k, msgs := range s.messages {
			if !strings.HasPrefix(k, string(kind)+"/") {
				continue
			}
			for i := range msgs {
				if msgs[i].ID != id {
					continue
				}
				conv := models.ConversationRef{Kind: kind, ID: msgs[i].ConversationID()}
				now := time.Now().UTC()
				msgs[i].Body = models.TextBody{Text: req.Content}
				msgs[i].MentionBy = s.usersLocked(conv, req.MentionBy)
				msgs[i].EditedAt = &now
				c.JSON(http.StatusOK, gin.H{"success": true, "data": msgs[i]})
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "message not found"})
	}
}

func (s *Server) markRead(kind models.ConversationKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.fail(c, "read") {
			return
		}
		var req models.ReadReceiptRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
			return
		}
		conv := models.TaskChat(req.TaskID)
		if kind == models.KindGroup {
			conv = models.GroupChat(req.GroupID)
		}

		s.mu.Lock()
		s.reads = append(s.reads, req)
		members := s.members[key(conv)]
		for i := range members {
			if members[i].ID == req.UserID {
				members[i].LastMessageReadID = req.MessageID
			}
		}
		s.mu.Unlock()

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func (s *Server) listMembers(kind models.ConversationKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.fail(c, "members") {
			return
		}
		conv := models.ConversationRef{Kind: kind, ID: c.Param("id")}
		s.mu.Lock()
		members := append([]models.Member{}, s.members[key(conv)]...)
		s.mu.Unlock()

		c.JSON(http.StatusOK, gin.H{"success": true, "data": members})
	}
}

func (s *Server) uploadDocument(c *gin.Context) {
	if s.fail(c, "upload") {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "file is required"})
		return
	}
	mime := file.Header.Get("Content-Type")
	if mime == "" {
		mime = "application/octet-stream"
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": models.Document{
		URL:              "https://files.test/" + file.Filename,
		OriginalFilename: file.Filename,
		MimeType:         mime,
	}})
}

func (s *Server) fail(c *gin.Context, op string) bool {
	status, ok := s.record(op)
	if !ok {
		return false
	}
	c.JSON(status, gin.H{"success": false, "message": "injected failure"})
	return true
}

func (s *Server) authorLocked(conv models.ConversationRef, id string) models.Author {
	for _, m := range s.members[key(conv)] {
		if m.ID == id {
			return models.Author{ID: m.ID, Name: m.Name}
		}
	}
	return models.Author{ID: id}
}

func (s *Server) usersLocked(conv models.ConversationRef, ids []string) []models.User {
	users := []models.User{}
	for _, id := range ids {
		for _, m := range s.members[key(conv)] {
			if m.ID == id {
				users = append(users, m.AsUser())
			}
		}
	}
	return users
}
