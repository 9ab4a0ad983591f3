package api

import (
	"net/url"

	"chat-client/internal/models"
)

func historyPath(c models.ConversationRef) string {
	if c.Kind == models.KindGroup {
		return "/groupMessage/" + url.PathEscape(c.ID)
	}
	return "/comment/" + url.PathEscape(c.ID)
}

func createPath(c models.ConversationRef) string {
	if c.Kind == models.KindGroup {
		return "/groupMessage"
	}
	return "/comment"
}

func editPath(c models.ConversationRef, messageID string) string {
	return createPath(c) + "/" + url.PathEscape(messageID)
}

func readCursorPath(c models.ConversationRef) string {
	if c.Kind == models.KindGroup {
		return "/group/updatereadmessage"
	}
	return "/task/readcomment"
}

func membersPath(c models.ConversationRef) string {
	if c.Kind == models.KindGroup {
		return "/group/" + url.PathEscape(c.ID) + "/members"
	}
	return "/task/" + url.PathEscape(c.ID) + "/members"
}

const documentsPath = "/documents"
