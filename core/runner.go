package core

import (
	"context"
	"fmt"
)

// GoRunner is the default TaskRunner: each task runs on its own detached
// goroutine. Panics are recovered and logged so a broken task can never
// take down the hosting process. Callers observe no result.
type GoRunner struct {
	Logger Logger
}

func (r GoRunner) Submit(ctx context.Context, name string, task func(context.Context)) error {
	if task == nil {
		return fmt.Errorf("core: task is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				LogWith(ctx, r.Logger, "error", "background task panicked", map[string]any{
					"task":  name,
					"panic": fmt.Sprint(recovered),
				})
			}
		}()
		task(ctx)
	}()
	return nil
}

var _ TaskRunner = GoRunner{}
