// Package notify defines the outward notification contract used by watchers
// and the rendering rules shared by every chat channel.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultInlineThreshold is the largest list rendered inline.
	DefaultInlineThreshold = 50

	// DefaultMaxLength is Discord's message content limit in characters.
	DefaultMaxLength = 2000

	emptyBody      = "—"
	attachedMarker = "(attached list)"
)

// Notification is a header plus an ordered list of lines. Filename is the
// attachment name prefix used when the list is too long to inline.
type Notification struct {
	Header   string
	Lines    []string
	Filename string
}

// Sink delivers notifications. Implementations must treat an unconfigured
// destination as a no-op rather than an error.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// Attachment is a text file sent alongside a message.
type Attachment struct {
	Name string
	Data []byte
}

// Message is a rendered notification ready for a chat API.
type Message struct {
	Content    string
	Attachment *Attachment
}

// Render turns n into a Message. Lists of at most inlineThreshold lines are
// inlined as bullet points when the result fits in maxLen characters;
// anything larger becomes a .txt attachment with one line per item.
// Non-positive arguments select the defaults.
func Render(n Notification, inlineThreshold, maxLen int) Message {
	if inlineThreshold <= 0 {
		inlineThreshold = DefaultInlineThreshold
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}

	if len(n.Lines) <= inlineThreshold {
		content := n.Header + "\n" + inlineBody(n.Lines)
		if utf8.RuneCountInString(content) <= maxLen {
			return Message{Content: content}
		}
	}

	trimmed := make([]string, len(n.Lines))
	for i, ln := range n.Lines {
		trimmed[i] = strings.TrimSpace(ln)
	}

	return Message{
		Content: n.Header + "\n" + attachedMarker,
		Attachment: &Attachment{
			Name: attachmentName(n.Filename),
			Data: []byte(strings.Join(trimmed, "\n")),
		},
	}
}

func inlineBody(lines []string) string {
	if len(lines) == 0 {
		return emptyBody
	}
	var b strings.Builder
	for i, ln := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "• `%s`", ln)
	}
	return b.String()
}

func attachmentName(prefix string) string {
	if prefix == "" {
		prefix = "list"
	}
	return prefix + ".txt"
}

// LogSink writes notifications to a logger. It is the fallback when no chat
// channel is configured.
type LogSink struct {
	logger *slog.Logger
}

// Compile-time interface check.
var _ Sink = (*LogSink)(nil)

// NewLogSink returns a LogSink writing at Info level.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Notify implements Sink.
func (s *LogSink) Notify(ctx context.Context, n Notification) error {
	s.logger.InfoContext(ctx, "notify: notification",
		"header", n.Header,
		"lines", len(n.Lines),
		"items", strings.Join(n.Lines, ", "),
	)
	return nil
}
