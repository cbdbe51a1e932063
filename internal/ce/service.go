package ce

import "context"

// TaskService answers status queries for a component.
// Implementations must query with exactly the given key.
type TaskService interface {
	TasksForComponent(ctx context.Context, componentKey string) (*Queue, error)
}

// TaskServiceFunc adapts a function to TaskService.
type TaskServiceFunc func(ctx context.Context, componentKey string) (*Queue, error)

func (f TaskServiceFunc) TasksForComponent(ctx context.Context, componentKey string) (*Queue, error) {
	return f(ctx, componentKey)
}
