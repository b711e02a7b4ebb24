package logger

import (
	"context"
	"log/slog"

	"github.com/cboydstun/bounce-v3-sub014/pkg/middleware"
)

func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(middleware.LoggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
