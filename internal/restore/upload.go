package restore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	dErrors "canon/pkg/domainerrors"
)

// MaxUploadSize caps backup uploads at 500 MiB.
const MaxUploadSize = 500 * 1024 * 1024

// backupExt is the only accepted backup file extension.
const backupExt = ".sql"

// ValidateUpload checks a backup payload before anything touches storage.
// Each rejection carries a distinct validation message.
func ValidateUpload(data []byte, name string) error {
	if len(data) == 0 {
		return dErrors.New(dErrors.CodeValidation, "backup file is empty")
	}
	if len(data) > MaxUploadSize {
		return dErrors.New(dErrors.CodeValidation, "backup file exceeds the 500MB limit")
	}
	if !strings.HasSuffix(name, backupExt) {
		return dErrors.New(dErrors.CodeValidation, "backup file must be a .sql file")
	}
	return nil
}

// UploadStore persists uploaded backup payloads and resolves backup ids to
// paths for the restore executor.
type UploadStore interface {
	Save(data []byte, name string) (id string, path string, err error)
	Path(id string) (string, error)
	List() ([]StoredBackup, error)
	Remove(id string) error
}

// StoredBackup describes one backup file on disk.
type StoredBackup struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// FSUploadStore keeps backups as files under a single directory. The stored
// name is prefixed with a millisecond timestamp so ids stay unique and sort
// by upload time.
type FSUploadStore struct {
	dir string
}

func NewFSUploadStore(dir string) (*FSUploadStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backups directory: %w", err)
	}
	return &FSUploadStore{dir: dir}, nil
}

func (s *FSUploadStore) Save(data []byte, name string) (string, string, error) {
	id := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), filepath.Base(name))
	path := filepath.Join(s.dir, id)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", "", fmt.Errorf("write backup file: %w", err)
	}
	return id, path, nil
}

// Path resolves a backup id to its file path, rejecting ids that escape the
// backups directory.
func (s *FSUploadStore) Path(id string) (string, error) {
	if id != filepath.Base(id) {
		return "", dErrors.New(dErrors.CodeValidation, "invalid backup id")
	}
	path := filepath.Join(s.dir, id)
	if _, err := os.Stat(path); err != nil {
		return "", dErrors.New(dErrors.CodeNotFound, "backup not found")
	}
	return path, nil
}

// List returns every stored backup, newest first. The original upload name
// is recovered by stripping the timestamp prefix from the stored id.
func (s *FSUploadStore) List() ([]StoredBackup, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read backups directory: %w", err)
	}

	var out []StoredBackup
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), backupExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		filename := entry.Name()
		if _, rest, ok := strings.Cut(filename, "_"); ok && rest != "" {
			filename = rest
		}
		out = append(out, StoredBackup{
			ID:        entry.Name(),
			Filename:  filename,
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *FSUploadStore) Remove(id string) error {
	path, err := s.Path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove backup file: %w", err)
	}
	return nil
}
