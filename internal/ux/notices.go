package ux

import (
	"fmt"
	"io"
	"sync"

	"github.com/felixgeelhaar/sciencepoint/internal/auth"
)

// NoticeWriter prints controller notices, one per line.
type NoticeWriter struct {
	mu     sync.Mutex
	w      io.Writer
	styles Styles
}

// NewNoticeWriter returns a NoticeWriter writing to w.
func NewNoticeWriter(w io.Writer, noColor bool) *NoticeWriter {
	return &NoticeWriter{w: w, styles: NewStyles(noColor)}
}

// Notify implements auth.Notifier.
func (n *NoticeWriter) Notify(notice auth.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.w, n.Render(notice))
}

// Render formats a notice with its level marker.
func (n *NoticeWriter) Render(notice auth.Notice) string {
	switch notice.Level {
	case auth.LevelSuccess:
		return n.styles.Success.Render("✓ " + notice.Message)
	case auth.LevelWarning:
		return n.styles.Warning.Render("⚠ " + notice.Message)
	case auth.LevelError:
		return n.styles.Error.Render("✗ " + notice.Message)
	default:
		return n.styles.Info.Render("ℹ " + notice.Message)
	}
}

var _ auth.Notifier = (*NoticeWriter)(nil)
