package conversation

import "errors"

var (
	ErrSubmitInProgress = errors.New("a message is already being sent")
	ErrNoMoreMessages   = errors.New("all messages already fetched")
	ErrLoadInProgress   = errors.New("history is already loading")
	ErrStaleFetch       = errors.New("fetch belongs to a closed conversation")
	ErrSessionClosed    = errors.New("conversation closed")
	ErrMessageNotFound  = errors.New("message not found")
	ErrNotEditable      = errors.New("message cannot be edited")
	ErrEmptyMessage     = errors.New("message is empty")
)
