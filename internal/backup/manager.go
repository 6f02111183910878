// Package backup archives the server directory and enforces the retention
// window over past archives.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/stellarlinkco/jarvis/internal/guard"
	"github.com/stellarlinkco/jarvis/internal/metrics"
	"github.com/stellarlinkco/jarvis/internal/spawn"
)

const (
	ArchivePrefix = "server_backup_"
	ArchiveExt    = ".zip"
	stampLayout   = "20060102_150405"
)

var (
	ErrServerOnline     = errors.New("server is online")
	ErrBusy             = errors.New("backup already in progress")
	ErrInvalidRetention = errors.New("retention window must be at least 0 days")
)

// Record describes one archive on disk.
type Record struct {
	ArchivePath string
	CreatedAt   time.Time
	SizeBytes   int64
}

// RetentionPolicy keeps archives whose age in whole days is at most MaxAgeDays.
// MaxAgeDays must not be negative.
type RetentionPolicy struct {
	MaxAgeDays int
}

// LivenessChecker reports whether the server is running. Archiving a live
// world risks copying half-written region files.
type LivenessChecker interface {
	Online(ctx context.Context) bool
}

type Options struct {
	SourceDir string
	DestDir   string
	Exclude   []string
	Retention RetentionPolicy
	// Script, when set, replaces the built-in archiver with an external
	// command run to completion.
	Script string
	Now    func() time.Time
}

type Manager struct {
	opts     Options
	exclude  map[string]struct{}
	liveness LivenessChecker
	spawner  spawn.Spawner
	audit    *AuditLog
	latch    *guard.Latch
}

func NewManager(opts Options, liveness LivenessChecker, spawner spawn.Spawner, audit *AuditLog) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	exclude := make(map[string]struct{}, len(opts.Exclude))
	for _, name := range opts.Exclude {
		exclude[name] = struct{}{}
	}
	return &Manager{
		opts:     opts,
		exclude:  exclude,
		liveness: liveness,
		spawner:  spawner,
		audit:    audit,
		latch:    guard.NewLatch("backup"),
	}
}

// InFlight reports whether a backup is running right now.
func (m *Manager) InFlight() bool { return m.latch.InFlight() }

// Run is the chat-facing backup: it refuses while the server is online or a
// backup is already running, then archives and prunes (or runs the external
// script). Progress lines go to reply.
func (m *Manager) Run(ctx context.Context, reply func(string)) error {
	release, err := m.begin(ctx)
	switch {
	case errors.Is(err, ErrServerOnline):
		reply("⚠️ The server is currently online, sir. Please stop it before backing up to avoid corruption.")
		return err
	case errors.Is(err, ErrBusy):
		reply("⚠️ A backup is already in progress. Please wait until it finishes.")
		return err
	}
	defer release()

	reply("🛠️ Initiating backup routine")

	if m.opts.Script != "" {
		err = m.runScript(ctx)
	} else {
		_, err = m.archive(ctx, m.opts.SourceDir, m.opts.DestDir)
		if err == nil {
			// a failed sweep does not fail the backup that just succeeded
			_, _ = m.PruneOldBackups(m.opts.DestDir, m.opts.Retention)
		}
	}
	if err != nil {
		metrics.IncBackup("failed")
		reply("❌ Backup failed")
		return err
	}
	metrics.IncBackup("ok")
	reply("✅ Backup completed successfully!")
	return nil
}

// CreateBackup archives sourceDir into a new timestamped zip in destDir.
// Files whose base name is on the exclusion list are skipped; entry names
// are slash-separated paths relative to sourceDir.
func (m *Manager) CreateBackup(ctx context.Context, sourceDir, destDir string) (Record, error) {
	release, err := m.begin(ctx)
	if err != nil {
		return Record{}, err
	}
	defer release()
	return m.archive(ctx, sourceDir, destDir)
}

func (m *Manager) begin(ctx context.Context) (func(), error) {
	if m.liveness != nil && m.liveness.Online(ctx) {
		metrics.IncBackup("refused")
		return nil, ErrServerOnline
	}
	release, ok := m.latch.TryAcquire()
	if !ok {
		metrics.IncGuardRejection(m.latch.Name())
		return nil, ErrBusy
	}
	return release, nil
}

func (m *Manager) archive(ctx context.Context, sourceDir, destDir string) (Record, error) {
	rec, err := m.writeArchive(ctx, sourceDir, destDir)
	if err != nil {
		m.log(fmt.Sprintf("Error creating backup: %v", err))
		return Record{}, err
	}
	metrics.SetBackupBytes(rec.SizeBytes)
	m.log(fmt.Sprintf("Backup created at: %s", rec.ArchivePath))
	return rec, nil
}

func (m *Manager) writeArchive(ctx context.Context, sourceDir, destDir string) (rec Record, err error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return Record{}, fmt.Errorf("source dir: %w", err)
	}
	if !info.IsDir() {
		return Record{}, fmt.Errorf("source %s is not a directory", sourceDir)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Record{}, fmt.Errorf("create backup dir: %w", err)
	}

	createdAt := m.opts.Now()
	path, f, err := createArchiveFile(destDir, createdAt)
	if err != nil {
		return Record{}, err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(path)
		}
	}()

	absDest, _ := filepath.Abs(destDir)
	zw := zip.NewWriter(f)
	walkErr := filepath.WalkDir(sourceDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			// never archive the archives when the destination lives inside the source
			if abs, _ := filepath.Abs(p); abs == absDest && p != sourceDir {
				return filepath.SkipDir
			}
			return nil
		}
		if _, skip := m.exclude[d.Name()]; skip {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(sourceDir, p)
		if err != nil {
			return err
		}
		return addFile(zw, p, filepath.ToSlash(rel))
	})
	if walkErr != nil {
		_ = zw.Close()
		return Record{}, fmt.Errorf("archive %s: %w", sourceDir, walkErr)
	}
	if err := zw.Close(); err != nil {
		return Record{}, fmt.Errorf("finish archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return Record{}, fmt.Errorf("close archive: %w", err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return Record{}, fmt.Errorf("stat archive: %w", err)
	}
	return Record{ArchivePath: path, CreatedAt: createdAt, SizeBytes: st.Size()}, nil
}

// createArchiveFile opens a fresh archive named after t. A second archive in
// the same second gets a numeric suffix instead of overwriting the first.
func createArchiveFile(destDir string, t time.Time) (string, *os.File, error) {
	base := ArchivePrefix + t.Format(stampLayout)
	for i := 0; i < 100; i++ {
		name := base + ArchiveExt
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", base, i, ArchiveExt)
		}
		path := filepath.Join(destDir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return path, f, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", nil, fmt.Errorf("create archive: %w", err)
		}
	}
	return "", nil, fmt.Errorf("create archive: too many archives named %s", base)
}

func addFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

// PruneOldBackups deletes archives in destDir older than the policy allows and
// returns the deleted paths. Entries that are not regular .zip files are left
// alone. An archive's age comes from the timestamp in its name, or from its
// modification time when the name carries none. A negative MaxAgeDays is
// rejected before anything is touched.
func (m *Manager) PruneOldBackups(destDir string, policy RetentionPolicy) ([]string, error) {
	if policy.MaxAgeDays < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRetention, policy.MaxAgeDays)
	}
	entries, err := os.ReadDir(destDir)
	if err != nil {
		m.log(fmt.Sprintf("Error deleting old backups: %v", err))
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	now := m.opts.Now()
	var deleted []string
	var errs []error
	for _, e := range entries {
		path := filepath.Join(destDir, e.Name())
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(e.Name()), ArchiveExt) {
			continue
		}
		created, err := archiveTime(e)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ageDays := int(now.Sub(created) / (24 * time.Hour))
		if ageDays <= policy.MaxAgeDays {
			continue
		}
		if err := os.Remove(path); err != nil {
			m.log(fmt.Sprintf("Error deleting old backups: %v", err))
			errs = append(errs, err)
			continue
		}
		m.log(fmt.Sprintf("Deleted old backup: %s", path))
		deleted = append(deleted, path)
	}
	metrics.AddPruned(len(deleted))
	return deleted, errors.Join(errs...)
}

// ListBackups returns the archives in destDir, oldest first.
func ListBackups(destDir string) ([]Record, error) {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(e.Name()), ArchiveExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		created, err := archiveTime(e)
		if err != nil {
			continue
		}
		out = append(out, Record{
			ArchivePath: filepath.Join(destDir, e.Name()),
			CreatedAt:   created,
			SizeBytes:   info.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func archiveTime(e fs.DirEntry) (time.Time, error) {
	name := e.Name()
	if strings.HasPrefix(name, ArchivePrefix) && len(name) >= len(ArchivePrefix)+len(stampLayout) {
		stamp := name[len(ArchivePrefix) : len(ArchivePrefix)+len(stampLayout)]
		if t, err := time.ParseInLocation(stampLayout, stamp, time.Local); err == nil {
			return t, nil
		}
	}
	info, err := e.Info()
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (m *Manager) runScript(ctx context.Context) error {
	res, err := m.spawner.RunAndWait(ctx, m.opts.Script, "")
	if err != nil {
		if res.Stderr != "" {
			log.Printf("[backup] script stderr: %s", strings.TrimSpace(res.Stderr))
		}
		m.log(fmt.Sprintf("Error creating backup: %v", err))
		return fmt.Errorf("backup script: %w", err)
	}
	m.log(fmt.Sprintf("Backup script finished: %s", m.opts.Script))
	return nil
}

// log records message in the audit trail. Audit failures never fail the
// action being recorded.
func (m *Manager) log(message string) {
	if m.audit == nil {
		log.Printf("[backup] %s", message)
		return
	}
	if err := m.audit.Log(message); err != nil {
		log.Printf("[backup] audit log: %v", err)
	}
}
