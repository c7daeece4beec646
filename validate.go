package smartedit

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

type ValidatedAction struct {
	FileAction
	Path string
}

type ValidatedPlan struct {
	Summary  string
	Actions  []ValidatedAction
	Rejected []RejectedAction
	Planned  int
}

// Validator checks every action before any effect. Failing actions are
// quarantined into Rejected and never reach the executor.
type Validator struct {
	resolver *PathResolver
	settings Settings
	logger   *zap.Logger
}

func NewValidator(resolver *PathResolver, settings Settings, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{resolver: resolver, settings: settings, logger: logger}
}

func (v *Validator) Validate(plan *ActionPlan) ValidatedPlan {
	out := ValidatedPlan{Summary: plan.Summary, Planned: len(plan.Actions)}
	for _, a := range plan.Actions {
		path, err := v.check(a)
		if err != nil {
			v.logger.Warn("Rejected action",
				zap.String("action", string(a.Kind)),
				zap.String("filename", a.Filename),
				zap.Error(err))
			out.Rejected = append(out.Rejected, RejectedAction{
				Action:   string(a.Kind),
				Filename: a.Filename,
				Reason:   err.Error(),
			})
			continue
		}
		out.Actions = append(out.Actions, ValidatedAction{FileAction: a, Path: path})
	}
	return out
}

func (v *Validator) check(a FileAction) (string, error) {
	switch a.Kind {
	case ActionCreate, ActionUpdate:
		if a.Content == nil {
			return "", errors.New("content is required")
		}
	case ActionDelete:
	default:
		return "", fmt.Errorf("unsupported action %q", a.Kind)
	}

	if strings.TrimSpace(a.Filename) == "" {
		return "", errors.New("filename is required")
	}

	path, err := v.resolver.Resolve(a.Filename)
	if err != nil {
		return "", err
	}

	rel := v.resolver.Rel(path)
	for _, pattern := range v.settings.ProtectedPaths {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return "", fmt.Errorf("%s is protected by %q", rel, pattern)
		}
	}

	if a.Kind == ActionDelete {
		return path, nil
	}

	if !extensionAllowed(rel, v.settings.AllowedExtensions) {
		return "", fmt.Errorf("extension %q is not allowed", filepath.Ext(rel))
	}
	if limit := v.settings.MaxFileSize; limit > 0 && int64(len(*a.Content)) > limit {
		return "", fmt.Errorf("content is %d bytes, limit is %d", len(*a.Content), limit)
	}
	return path, nil
}

func extensionAllowed(name string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range allowed {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" && e[0] != '.' {
			e = "." + e
		}
		if ext == e {
			return true
		}
	}
	return false
}
