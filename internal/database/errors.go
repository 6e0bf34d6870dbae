package database

import "errors"

// ErrConversationNotFound is returned when a conversation does not exist or
// belongs to a different user. The two cases are deliberately indistinguishable.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrMessageNotFound is returned when a message does not exist or belongs to
// a conversation owned by a different user.
var ErrMessageNotFound = errors.New("message not found")

// ErrConversationLimit is returned when a user already has the maximum number
// of active conversations.
var ErrConversationLimit = errors.New("maximum number of active conversations reached")
