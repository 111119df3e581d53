package state

import "time"

// Stage identifies a step of the relay conversation.
type Stage string

const (
	// StageAwaitingLanguage is entered on /start and on language change.
	StageAwaitingLanguage Stage = "awaiting_language"
	// StageAwaitingCategory means a language is chosen and the category menu is shown.
	StageAwaitingCategory Stage = "awaiting_category"
	// StageAwaitingMessage means a category is chosen; the next message is forwarded.
	StageAwaitingMessage Stage = "awaiting_message"
)

// Session stores conversation state for a user.
type Session struct {
	Stage    Stage
	Language string
	// Category is set only while Stage is StageAwaitingMessage.
	Category  string
	UpdatedAt time.Time
}

// HasLanguage reports whether the user has picked a language.
func (s Session) HasLanguage() bool {
	return s.Language != "" && s.Stage != StageAwaitingLanguage
}

// Store holds sessions keyed by Telegram user id.
type Store interface {
	Get(userID int64) (Session, bool)
	Set(userID int64, s Session)
	Clear(userID int64)
	Len() int
}
