package smartedit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"
)

type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string { return e.Err.Error() }
func (e *DetailedError) Unwrap() error { return e.Err }

func recoverPanic(err *error) {
	if r := recover(); r != nil {
		*err = &DetailedError{Err: fmt.Errorf("panic: %v", r), Stack: debug.Stack()}
	}
}

// Processor runs a command end to end: prompt, completion, parse, validate,
// apply, record.
type Processor struct {
	store     *ConfigStore
	completer Completer
	parser    *ResponseParser
	history   *HistoryRecorder
	locks     *PathLocks
	idem      *IdempotencyCache
	notifier  Notifier
	metrics   *Metrics
	logger    *zap.Logger

	fallback PlanSource
	idemTTL  time.Duration
}

type ProcessorOption func(*Processor)

// WithFallback replaces the keyword template rules used when a completion
// cannot be decoded.
func WithFallback(src PlanSource) ProcessorOption {
	return func(p *Processor) { p.fallback = src }
}

func WithEditorNotifier(n Notifier) ProcessorOption {
	return func(p *Processor) { p.notifier = n }
}

func WithMetrics(m *Metrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

func WithIdempotencyTTL(ttl time.Duration) ProcessorOption {
	return func(p *Processor) { p.idemTTL = ttl }
}

func NewProcessor(store *ConfigStore, completer Completer, logger *zap.Logger, opts ...ProcessorOption) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Processor{
		store:     store,
		completer: completer,
		locks:     NewPathLocks(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.parser = NewResponseParser(p.fallback, logger)
	p.history = NewHistoryRecorder(store, logger)
	p.idem = NewIdempotencyCache(p.idemTTL)
	return p
}

func (p *Processor) Store() *ConfigStore { return p.store }

// SetFolder makes path the target folder for later commands.
func (p *Processor) SetFolder(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", requiredField("folderPath")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &ValidationError{Field: "folderPath", Message: err.Error()}
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		return "", &ValidationError{Field: "folderPath", Message: fmt.Sprintf("%s is not a directory", abs)}
	}

	if err := p.store.Update(func(c *Config) { c.TargetFolderPath = abs }); err != nil {
		p.logger.Error("Failed to persist target folder", zap.Error(err))
	}
	p.logger.Info("Target folder set", zap.String("path", abs))
	return abs, nil
}

// Execute asks the gateway for a plan and applies it. Gateway and decoding
// failures never fail the call; they produce a degraded fallback result.
func (p *Processor) Execute(ctx context.Context, cmd Command) (Result, error) {
	return p.run(ctx, cmd, func(ctx context.Context, cmd Command, resolver *PathResolver) ParsedPlan {
		prompt := BuildPrompt(cmd, listFolder(resolver.Root(), folderListingLimit))
		raw, err := p.complete(ctx, prompt)
		if err != nil {
			return p.parser.Degrade(cmd, err)
		}
		return p.parser.Parse(raw, cmd)
	})
}

// Apply runs the pipeline on a completion obtained elsewhere, for example
// pasted from a chat window.
func (p *Processor) Apply(ctx context.Context, cmd Command, raw string) (Result, error) {
	return p.run(ctx, cmd, func(_ context.Context, cmd Command, _ *PathResolver) ParsedPlan {
		return p.parser.Parse(raw, cmd)
	})
}

func (p *Processor) run(ctx context.Context, cmd Command, plan func(context.Context, Command, *PathResolver) ParsedPlan) (res Result, err error) {
	defer recoverPanic(&err)

	cmd.Text = strings.TrimSpace(cmd.Text)
	if cmd.Text == "" {
		return Result{}, requiredField("command")
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	// A keyed run is shared by every submission of the key, so it must not
	// stop when the first submitter goes away.
	runCtx := ctx
	if cmd.IdempotencyKey != "" {
		runCtx = context.WithoutCancel(ctx)
	}
	res, shared, err := p.idem.Do(cmd.IdempotencyKey, func() (res Result, err error) {
		defer recoverPanic(&err)
		return p.process(runCtx, cmd, plan)
	})
	if shared {
		p.logger.Info("Replayed idempotent command", zap.String("key", cmd.IdempotencyKey))
	}
	return res, err
}

func (p *Processor) process(ctx context.Context, cmd Command, plan func(context.Context, Command, *PathResolver) ParsedPlan) (Result, error) {
	folder, err := p.targetFolder(cmd.TargetFolder)
	if err != nil {
		return Result{}, err
	}
	cmd.TargetFolder = folder

	resolver, err := NewPathResolver(folder)
	if err != nil {
		return Result{}, err
	}
	settings := p.store.Snapshot().Settings

	p.logger.Info("Processing command", zap.String("command", cmd.Text), zap.String("folder", folder))
	parsed := plan(ctx, cmd, resolver)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	validated := NewValidator(resolver, settings, p.logger).Validate(parsed.Plan)
	executor := NewExecutor(resolver, settings, p.locks, p.logger, WithNotifier(p.notifier))

	if cmd.DryRun {
		return Result{
			Summary:       validated.Summary,
			FilesAffected: []AffectedFile{},
			ActionsCount:  validated.Planned,
			Degraded:      parsed.Degraded,
			Rejected:      validated.Rejected,
			Preview:       executor.Preview(validated),
		}, nil
	}

	res := executor.Execute(ctx, validated)
	res.Degraded = parsed.Degraded

	label := LabelExecute
	if parsed.Degraded {
		label = LabelFallback
	}
	p.history.Record(HistoryEntry{
		Command:       cmd.Text,
		Label:         label,
		Summary:       res.Summary,
		FilesAffected: len(res.FilesAffected),
	})
	p.metrics.observeResult(label, res)
	return res, nil
}

// targetFolder prefers the folder named by the request and remembers it.
func (p *Processor) targetFolder(requested string) (string, error) {
	if strings.TrimSpace(requested) != "" {
		return p.SetFolder(requested)
	}
	folder := p.store.Snapshot().TargetFolderPath
	if folder == "" {
		return "", &ValidationError{Field: "folderPath", Message: "no target folder set; send folderPath or call set-folder first"}
	}
	return folder, nil
}

func (p *Processor) complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	raw, err := p.completer.Complete(ctx, prompt)
	p.metrics.observeCompletion(time.Since(start), err)
	if err != nil && !errors.Is(err, ErrUpstreamUnavailable) {
		err = fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	return raw, err
}

// Edit rewrites a single file's code from an instruction and returns the new
// code. Nothing is written to disk.
func (p *Processor) Edit(ctx context.Context, edit EditContext) (code string, err error) {
	defer recoverPanic(&err)

	if strings.TrimSpace(edit.Instruction) == "" {
		return "", requiredField("prompt")
	}
	if edit.Code == "" {
		return "", requiredField("code")
	}

	raw, err := p.complete(ctx, BuildEditPrompt(edit))
	if err != nil {
		return "", err
	}
	code = extractCode(raw)

	p.history.Record(HistoryEntry{
		Command:       edit.Instruction,
		Label:         LabelEdit,
		Length:        len(code),
		FilesAffected: 0,
	})
	p.metrics.observeResult(LabelEdit, Result{})
	return code, nil
}

func extractCode(raw string) string {
	blocks, err := ExtractCodeBlocks([]byte(raw))
	if err != nil || len(blocks) == 0 {
		return strings.TrimSpace(raw)
	}
	return blocks[0].Content
}

func (p *Processor) resolver() (*PathResolver, error) {
	folder := p.store.Snapshot().TargetFolderPath
	if folder == "" {
		return nil, &ValidationError{Field: "folderPath", Message: "no target folder set"}
	}
	return NewPathResolver(folder)
}

func (p *Processor) resolve(filename string) (*PathResolver, string, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, "", requiredField("filename")
	}
	r, err := p.resolver()
	if err != nil {
		return nil, "", err
	}
	path, err := r.Resolve(filename)
	if err != nil {
		return nil, "", err
	}
	return r, path, nil
}

func (p *Processor) ReadFile(filename string) (string, error) {
	_, path, err := p.resolve(filename)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// WriteFile stores content as is. No backup is taken.
func (p *Processor) WriteFile(ctx context.Context, filename, content string) error {
	_, path, err := p.resolve(filename)
	if err != nil {
		return err
	}
	unlock, err := p.locks.Lock(ctx, path)
	if err != nil {
		return err
	}
	defer unlock()
	if err := NewFileManager().Write(path, content); err != nil {
		return err
	}
	p.notify(path)
	return nil
}

func (p *Processor) History() []HistoryEntry {
	return p.history.Entries()
}

// Backups lists the backups of filename, newest first, with paths relative
// to the target folder.
func (p *Processor) Backups(filename string) ([]BackupInfo, error) {
	r, path, err := p.resolve(filename)
	if err != nil {
		return nil, err
	}
	list, err := p.backupManager().List(path)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Path = r.Rel(list[i].Path)
	}
	return list, nil
}

// Restore puts a backup of filename back in place. An empty backup name
// selects the newest one.
func (p *Processor) Restore(ctx context.Context, filename, backup string) (BackupInfo, error) {
	r, path, err := p.resolve(filename)
	if err != nil {
		return BackupInfo{}, err
	}
	unlock, err := p.locks.Lock(ctx, path)
	if err != nil {
		return BackupInfo{}, err
	}
	defer unlock()

	if backup != "" {
		backup = filepath.Base(backup)
	}
	restored, saved, err := NewFileManager().Restore(path, backup, p.backupManager())
	if err != nil {
		return BackupInfo{}, err
	}
	restored.Path = r.Rel(restored.Path)

	fields := []zap.Field{zap.String("filename", filename), zap.String("backup", restored.Name)}
	if saved != "" {
		fields = append(fields, zap.String("saved", r.Rel(saved)))
	}
	p.logger.Info("Restored backup", fields...)
	p.notify(path)
	return restored, nil
}

func (p *Processor) backupManager() *BackupManager {
	return NewBackupManager(p.store.Snapshot().Settings.MaxBackups, p.logger)
}

func (p *Processor) notify(paths ...string) {
	if p.notifier != nil {
		p.notifier.FilesChanged(paths)
	}
}
