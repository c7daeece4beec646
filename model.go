package smartedit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type ActionKind string

const (
	ActionCreate ActionKind = "create"
	ActionUpdate ActionKind = "update"
	ActionDelete ActionKind = "delete"
)

// ParseActionKind accepts the verbs models tend to emit for the three kinds.
func ParseActionKind(s string) (ActionKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "create", "add", "new":
		return ActionCreate, true
	case "update", "modify", "edit", "overwrite":
		return ActionUpdate, true
	case "delete", "remove":
		return ActionDelete, true
	}
	return "", false
}

type Command struct {
	Text           string
	TargetFolder   string
	IdempotencyKey string
	DryRun         bool
}

type FileAction struct {
	Kind     ActionKind
	Filename string
	Content  *string
	Reason   string
}

func (a FileAction) String() string {
	return fmt.Sprintf("%s %s", a.Kind, a.Filename)
}

type ActionPlan struct {
	Summary string
	Actions []FileAction
}

type AffectedFile struct {
	Action   string `json:"action"`
	Filename string `json:"filename"`
	Size     *int   `json:"size,omitempty"`
}

type RejectedAction struct {
	Action   string `json:"action"`
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

type FailedAction struct {
	Action   string `json:"action"`
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

type ActionPreview struct {
	Action   string `json:"action"`
	Filename string `json:"filename"`
	Exists   bool   `json:"exists"`
	Diff     string `json:"diff,omitempty"`
}

type Result struct {
	Summary       string           `json:"summary"`
	FilesAffected []AffectedFile   `json:"filesAffected"`
	ActionsCount  int              `json:"actionsCount"`
	Degraded      bool             `json:"degraded"`
	Rejected      []RejectedAction `json:"rejected,omitempty"`
	Failed        []FailedAction   `json:"failed,omitempty"`
	Preview       []ActionPreview  `json:"preview,omitempty"`
}

const (
	LabelExecute  = "smart-execute"
	LabelFallback = "fallback"
	LabelEdit     = "ai-task"
)

type HistoryEntry struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Command       string    `json:"command"`
	Label         string    `json:"label"`
	Summary       string    `json:"summary,omitempty"`
	Length        int       `json:"length,omitempty"`
	FilesAffected int       `json:"filesAffected"`
}

type Settings struct {
	MaxFileSize       int64    `json:"maxFileSize"`
	AllowedExtensions []string `json:"allowedExtensions"`
	AutoBackup        bool     `json:"autoBackup"`
	MaxBackups        int      `json:"maxBackups"`
	ProtectedPaths    []string `json:"protectedPaths,omitempty"`
}

type Config struct {
	TargetFolderPath string         `json:"targetFolderPath"`
	LastCommands     []HistoryEntry `json:"lastCommands"`
	Settings         Settings       `json:"settings"`
}

func DefaultSettings() Settings {
	return Settings{
		MaxFileSize:       10 << 20,
		AllowedExtensions: []string{},
		AutoBackup:        true,
		MaxBackups:        10,
		ProtectedPaths:    []string{"**/" + BackupDirName + "/**", "**/.git/**"},
	}
}

func DefaultConfig() *Config {
	return &Config{
		LastCommands: []HistoryEntry{},
		Settings:     DefaultSettings(),
	}
}

func (c *Config) clone() *Config {
	out := *c
	out.LastCommands = append([]HistoryEntry(nil), c.LastCommands...)
	out.Settings.AllowedExtensions = append([]string(nil), c.Settings.AllowedExtensions...)
	out.Settings.ProtectedPaths = append([]string(nil), c.Settings.ProtectedPaths...)
	return &out
}

// UnmarshalJSON starts from defaults so documents written by older versions
// keep sensible settings for fields they never had.
func (s *Settings) UnmarshalJSON(data []byte) error {
	type plain Settings
	p := plain(DefaultSettings())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Settings(p)
	return nil
}
