package backup

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const auditTimeLayout = "2006-01-02 15:04:05.000000"

// AuditLog appends one timestamped line per backup action. The file is never
// truncated or rotated by this process.
type AuditLog struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path, now: time.Now}
}

func (a *AuditLog) Path() string { return a.path }

// Log writes message to the process log and appends it to the audit file,
// creating the file and its directory on first use.
func (a *AuditLog) Log(message string) error {
	log.Printf("[backup] %s", message)
	if a == nil || a.path == "" {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s: %s\n", a.now().Format(auditTimeLayout), message); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}
