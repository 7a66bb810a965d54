package improve

import (
	"context"
	"log"
)

// step is one named unit of a workflow run. The name identifies the step in
// logs, persisted error messages, and failure comments.
type step struct {
	name string
	fn   func(ctx context.Context) error
}

// runSteps executes steps in order, stopping at the first failure. It returns
// the name of the failed step alongside its error.
func runSteps(ctx context.Context, steps []step) (string, error) {
	for _, s := range steps {
		log.Printf("Step %s...", s.name)
		if err := s.fn(ctx); err != nil {
			log.Printf("Step %s failed: %v", s.name, err)
			return s.name, err
		}
	}
	return "", nil
}
