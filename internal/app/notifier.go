package app

import (
	"context"
	"log/slog"
)

// NoticeKind classifies a one-shot user notice.
type NoticeKind string

const (
	NoticeError NoticeKind = "error"
	NoticeInfo  NoticeKind = "info"
)

// Notice is a transient message for the user. It is shown once and never
// persisted.
type Notice struct {
	Kind    NoticeKind
	Message string
	Err     error
}

// Notifier displays one-shot notices.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// LogNotifier writes notices to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, notice Notice) {
	level := slog.LevelInfo
	if notice.Kind == NoticeError {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{slog.String("kind", string(notice.Kind))}
	if notice.Err != nil {
		attrs = append(attrs, slog.Any("error", notice.Err))
	}
	n.Logger.LogAttrs(ctx, level, notice.Message, attrs...)
}
