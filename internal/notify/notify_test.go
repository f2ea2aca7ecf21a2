package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestRender_Inline(t *testing.T) {
	t.Parallel()

	msg := Render(Notification{Header: "H", Lines: []string{"alice", "bob"}, Filename: "x"}, 0, 0)
	if msg.Attachment != nil {
		t.Fatal("expected inline rendering")
	}
	want := "H\n• `alice`\n• `bob`"
	if msg.Content != want {
		t.Errorf("Content = %q, want %q", msg.Content, want)
	}
}

func TestRender_Empty(t *testing.T) {
	t.Parallel()

	msg := Render(Notification{Header: "H"}, 0, 0)
	if msg.Content != "H\n—" {
		t.Errorf("Content = %q, want %q", msg.Content, "H\n—")
	}
}

func TestRender_ThresholdBoundary(t *testing.T) {
	t.Parallel()

	lines := make([]string, 50)
	for i := range lines {
		lines[i] = fmt.Sprintf("u%d", i)
	}

	if msg := Render(Notification{Header: "H", Lines: lines}, 50, 0); msg.Attachment != nil {
		t.Error("50 lines should render inline")
	}

	lines = append(lines, "u50")
	msg := Render(Notification{Header: "H", Lines: lines, Filename: "banned_nk"}, 50, 0)
	if msg.Attachment == nil {
		t.Fatal("51 lines should become an attachment")
	}
	if msg.Content != "H\n(attached list)" {
		t.Errorf("Content = %q", msg.Content)
	}
	if msg.Attachment.Name != "banned_nk.txt" {
		t.Errorf("Name = %q, want banned_nk.txt", msg.Attachment.Name)
	}
	if got := strings.Count(string(msg.Attachment.Data), "\n"); got != 50 {
		t.Errorf("attachment has %d newlines, want 50", got)
	}
}

func TestRender_TooLongForInline(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 300)
	lines := []string{long, long, long, long, long, long, long, long}
	msg := Render(Notification{Header: "H", Lines: lines, Filename: "err_disabled"}, 50, 2000)
	if msg.Attachment == nil {
		t.Fatal("content over the length limit should become an attachment")
	}
}

func TestRender_AttachmentTrimsLines(t *testing.T) {
	t.Parallel()

	msg := Render(Notification{Header: "H", Lines: []string{" a ", "b\t"}}, 1, 0)
	if msg.Attachment == nil {
		t.Fatal("expected attachment")
	}
	if string(msg.Attachment.Data) != "a\nb" {
		t.Errorf("Data = %q, want %q", msg.Attachment.Data, "a\nb")
	}
	if msg.Attachment.Name != "list.txt" {
		t.Errorf("Name = %q, want list.txt", msg.Attachment.Name)
	}
}

func TestLogSink_NeverFails(t *testing.T) {
	t.Parallel()

	s := NewLogSink(slog.Default())
	if err := s.Notify(context.Background(), Notification{Header: "H", Lines: []string{"a"}}); err != nil {
		t.Errorf("Notify() = %v", err)
	}
}
