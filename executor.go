package smartedit

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const (
	AffectedCreated = "Created"
	AffectedUpdated = "Updated"
	AffectedDeleted = "Deleted"
)

// Notifier is told about files the executor changed on disk.
type Notifier interface {
	FilesChanged(paths []string)
}

type Executor struct {
	resolver   *PathResolver
	files      *FileManager
	backups    *BackupManager
	locks      *PathLocks
	autoBackup bool
	notifier   Notifier
	logger     *zap.Logger
}

type ExecutorOption func(*Executor)

func WithNotifier(n Notifier) ExecutorOption {
	return func(e *Executor) { e.notifier = n }
}

func NewExecutor(resolver *PathResolver, settings Settings, locks *PathLocks, logger *zap.Logger, opts ...ExecutorOption) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locks == nil {
		locks = NewPathLocks()
	}
	e := &Executor{
		resolver:   resolver,
		files:      NewFileManager(),
		backups:    NewBackupManager(settings.MaxBackups, logger),
		locks:      locks,
		autoBackup: settings.AutoBackup,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute applies the plan in order. A failing action is logged and listed
// in Failed; it never stops the actions after it.
func (e *Executor) Execute(ctx context.Context, plan ValidatedPlan) Result {
	res := Result{
		Summary:       plan.Summary,
		FilesAffected: []AffectedFile{},
		ActionsCount:  plan.Planned,
		Rejected:      plan.Rejected,
	}

	var changed []string
	for _, a := range plan.Actions {
		affected, err := e.apply(ctx, a)
		if err != nil {
			applyErr := &ActionApplyError{Action: a.FileAction, Err: err}
			e.logger.Error("Action failed",
				zap.String("action", string(a.Kind)),
				zap.String("filename", a.Filename),
				zap.Error(applyErr))
			res.Failed = append(res.Failed, FailedAction{
				Action:   string(a.Kind),
				Filename: a.Filename,
				Error:    err.Error(),
			})
			continue
		}
		if affected == nil {
			continue
		}
		e.logger.Info("Applied action",
			zap.String("action", affected.Action),
			zap.String("filename", affected.Filename))
		res.FilesAffected = append(res.FilesAffected, *affected)
		changed = append(changed, a.Path)
	}

	if e.notifier != nil && len(changed) > 0 {
		e.notifier.FilesChanged(changed)
	}
	return res
}

func (e *Executor) apply(ctx context.Context, a ValidatedAction) (*AffectedFile, error) {
	unlock, err := e.locks.Lock(ctx, a.Path)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", a.Filename, err)
	}
	defer unlock()

	exists, err := fileExists(a.Path)
	if err != nil {
		return nil, err
	}

	switch a.Kind {
	case ActionCreate, ActionUpdate:
		if a.Kind == ActionUpdate && exists && e.autoBackup {
			if err := e.backup(a); err != nil {
				return nil, err
			}
		}
		if err := e.files.Write(a.Path, *a.Content); err != nil {
			return nil, err
		}
		size := len(*a.Content)
		action := AffectedCreated
		if a.Kind == ActionUpdate {
			action = AffectedUpdated
		}
		return &AffectedFile{Action: action, Filename: a.Filename, Size: &size}, nil

	case ActionDelete:
		if !exists {
			e.logger.Debug("Skipping delete of missing file", zap.String("filename", a.Filename))
			return nil, nil
		}
		if e.autoBackup {
			if err := e.backup(a); err != nil {
				return nil, err
			}
		}
		if err := e.files.Remove(a.Path); err != nil {
			return nil, err
		}
		return &AffectedFile{Action: AffectedDeleted, Filename: a.Filename}, nil
	}
	return nil, errors.New("unsupported action")
}

func (e *Executor) backup(a ValidatedAction) error {
	dest, err := e.backups.Backup(a.Path)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	e.logger.Info("Backed up before mutation",
		zap.String("filename", a.Filename),
		zap.String("backup", e.resolver.Rel(dest)))
	return nil
}
