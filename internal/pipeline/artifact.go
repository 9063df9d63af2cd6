package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"
)

// writeArtifact replaces the error artifact with the panic value and the
// current goroutine's stack.
func writeArtifact(path string, recovered any) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	content := fmt.Sprintf("%s\npanic: %v\n\n%s", time.Now().UTC().Format(time.RFC3339), recovered, debug.Stack())
	return os.WriteFile(path, []byte(content), 0o644)
}
