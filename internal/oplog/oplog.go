package oplog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

type OperationType string

const (
	OpMove      OperationType = "move"
	OpCopy      OperationType = "copy"
	OpDelete    OperationType = "delete"
	OpRename    OperationType = "rename"
	OpCreateDir OperationType = "create_dir"
)

type Operation struct {
	ID         string        `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	Type       OperationType `json:"type"`
	SourcePath string        `json:"source_path"`
	DestPath   string        `json:"dest_path,omitempty"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
}

type SessionMetadata struct {
	CommandArgs   []string  `json:"command_args"`
	WorkingDir    string    `json:"working_dir"`
	Timestamp     time.Time `json:"timestamp"`
	SessionID     string    `json:"session_id"`
	TotalOps      int       `json:"total_operations"`
	SuccessfulOps int       `json:"successful_operations"`
	FailedOps     int       `json:"failed_operations"`
}

type Session struct {
	Metadata   SessionMetadata `json:"metadata"`
	Operations []Operation     `json:"operations"`
}

// Journal records filesystem mutations of one CLI run into a JSON session
// file. A disabled or unstarted journal drops every record.
type Journal struct {
	dir     string
	enabled bool

	mu      sync.Mutex
	current *Session
}

// New returns a journal writing session files into dir.
func New(dir string, enabled bool) *Journal {
	return &Journal{dir: dir, enabled: enabled}
}

// DefaultDir returns ~/.tidy-sort/logs.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".tidy-sort", "logs"), nil
}

// Start opens a new session.
func (j *Journal) Start(command string, args []string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.enabled {
		return nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	j.current = &Session{
		Metadata: SessionMetadata{
			CommandArgs: append([]string{command}, args...),
			WorkingDir:  wd,
			Timestamp:   time.Now(),
			SessionID:   uuid.NewString(),
		},
		Operations: []Operation{},
	}
	return nil
}

// Record appends an operation to the open session.
func (j *Journal) Record(op OperationType, src, dst string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.enabled || j.current == nil {
		return
	}

	entry := Operation{
		ID:         fmt.Sprintf("%s_%d", j.current.Metadata.SessionID, len(j.current.Operations)),
		Timestamp:  time.Now(),
		Type:       op,
		SourcePath: src,
		DestPath:   dst,
		Success:    err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	j.current.Operations = append(j.current.Operations, entry)
}

// End writes the open session to disk. Sessions without operations are
// discarded.
func (j *Journal) End() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.enabled || j.current == nil {
		return nil
	}
	session := j.current
	j.current = nil

	if len(session.Operations) == 0 {
		return nil
	}
	updateStats(session)
	return j.write(session)
}

func updateStats(session *Session) {
	successful := 0
	for _, op := range session.Operations {
		if op.Success {
			successful++
		}
	}
	session.Metadata.TotalOps = len(session.Operations)
	session.Metadata.SuccessfulOps = successful
	session.Metadata.FailedOps = len(session.Operations) - successful
}

func (j *Journal) write(session *Session) error {
	if err := os.MkdirAll(j.dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	ts := session.Metadata.Timestamp
	filename := fmt.Sprintf("%s.%03d.json", ts.Format("2006-01-02_150405"), ts.Nanosecond()/1000000)

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(filepath.Join(j.dir, filename), data, 0644); err != nil {
		return fmt.Errorf("failed to write log file: %w", err)
	}
	return nil
}

// ReadSession loads one session file.
func ReadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Sessions returns the newest sessions first, at most limit when limit > 0.
// Corrupted files are skipped.
func (j *Journal) Sessions(limit int) ([]*Session, error) {
	if _, err := os.Stat(j.dir); os.IsNotExist(err) {
		return []*Session{}, nil
	}

	files, err := filepath.Glob(filepath.Join(j.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}

	sessions := make([]*Session, 0, len(files))
	for _, file := range files {
		session, err := ReadSession(file)
		if err != nil {
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// Cleanup removes session files older than retentionDays and returns how
// many were removed.
func (j *Journal) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	if _, err := os.Stat(j.dir); os.IsNotExist(err) {
		return 0, nil
	}

	files, err := filepath.Glob(filepath.Join(j.dir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("failed to list log files: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(file); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
