package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// warmer is implemented by engines that can preload a model.
type warmer interface {
	WarmUp(ctx context.Context, model string) error
}

// EnsureReady checks that the Engine is reachable and that every listed model
// is available, pulling missing ones with progress written to w. Engines
// that cannot pull report the missing model as an error. The first model is
// warmed up afterwards when the engine supports it; a failed warm-up is not
// fatal.
func EnsureReady(ctx context.Context, e Engine, w io.Writer, models ...string) error {
	if !e.IsRunning(ctx) {
		return fmt.Errorf("inference engine is not reachable; for Ollama start it with: ollama serve")
	}

	seen := make(map[string]bool, len(models))
	var required []string
	for _, m := range models {
		if m != "" && !seen[m] {
			seen[m] = true
			required = append(required, m)
		}
	}

	for _, model := range required {
		if e.HasModel(ctx, model) {
			fmt.Fprintf(w, "model %s: ready\n", model)
			continue
		}

		fmt.Fprintf(w, "model %s: pulling...\n", model)
		err := e.PullModel(ctx, model, func(p PullProgress) {
			if p.Total > 0 {
				pct := float64(p.Completed) / float64(p.Total) * 100
				fmt.Fprintf(w, "  %s %.0f%%\n", p.Status, pct)
			} else {
				fmt.Fprintf(w, "  %s\n", p.Status)
			}
		})
		if errors.Is(err, ErrPullUnsupported) {
			return fmt.Errorf("model %s is not available on this backend", model)
		}
		if err != nil {
			return fmt.Errorf("pulling model %s: %w", model, err)
		}
		fmt.Fprintf(w, "model %s: ready\n", model)
	}

	if wu, ok := e.(warmer); ok && len(required) > 0 {
		fmt.Fprintf(w, "model %s: warming up...\n", required[0])
		warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := wu.WarmUp(warmCtx, required[0]); err != nil {
			fmt.Fprintf(w, "model %s: warm-up failed (non-fatal): %v\n", required[0], err)
		} else {
			fmt.Fprintf(w, "model %s: warm\n", required[0])
		}
	}
	return nil
}
