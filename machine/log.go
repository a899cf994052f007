package machine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
)

// logc logs a message with the current frame context from the call stack.
func (r *run) logc(ctx context.Context, level slog.Level, msg string, args ...any) {
	logger := r.m.logger
	if !logger.Enabled(ctx, level) {
		return
	}

	// position of the caller of logc
	if _, file, line, ok := runtime.Caller(1); ok {
		args = append([]any{slog.String("exec_pos", fmt.Sprintf("%s:%d", file, line))}, args...)
	}
	if n := len(r.stack); n > 0 {
		frame := r.calls[r.stack[n-1]]
		args = append([]any{
			slog.String("in_method", string(frame.Method)),
			slog.Int("depth", n),
		}, args...)
	}
	logger.Log(ctx, level, msg, args...)
}
