package relay

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// forwardHeader is the metadata line block sent to the admin chat before the copied message.
type forwardHeader struct {
	User     User
	Lang     string
	Category Category
	Ref      string
}

// newForwardRef returns a short reference printed in the header so admins can quote a request.
func newForwardRef() string {
	id := uuid.NewString()
	return id[:8]
}

// render formats the header as plain text in adminLang.
func (h forwardHeader) render(adminLang string) string {
	t := textsFor(adminLang)
	name := strings.TrimSpace(h.User.FullName)
	if name == "" {
		name = "-"
	}

	var b strings.Builder
	b.WriteString(t.headerTitle)
	fmt.Fprintf(&b, "\n• %s: %s (id=%d)", t.headerUser, name, h.User.ID)
	if h.User.Username != "" {
		fmt.Fprintf(&b, "\n• %s: @%s", t.headerUsername, h.User.Username)
	}
	fmt.Fprintf(&b, "\n• %s: %s", t.headerLang, h.Lang)
	fmt.Fprintf(&b, "\n• %s: %s", t.headerCategory, h.Category.Label(adminLang))
	fmt.Fprintf(&b, "\n• %s: %d", t.headerChat, h.User.ChatID)
	if h.Ref != "" {
		fmt.Fprintf(&b, "\n• %s: %s", t.headerRef, h.Ref)
	}
	return b.String()
}
