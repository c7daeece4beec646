package smartedit

import (
	"context"
	"fmt"
)

// ApplyConfig configures a one-off Apply call made by another program.
type ApplyConfig struct {
	Folder string
	// ConfigPath, when set, names the config document that receives the
	// folder, the settings and an "apply" history entry. Empty leaves no
	// trace on disk besides the applied files and their backups.
	ConfigPath string
	DryRun     bool
}

// Apply decodes an AI response holding an action plan and applies it to
// config.Folder, returning the affected filenames grouped by outcome.
func Apply(ctx context.Context, content string, config ApplyConfig) (map[string][]string, error) {
	proc := NewProcessor(OpenConfigStore(config.ConfigPath, nil), nil, nil)

	res, err := proc.Apply(ctx, Command{Text: "apply", TargetFolder: config.Folder, DryRun: config.DryRun}, content)
	if err != nil {
		return nil, fmt.Errorf("failed to apply plan: %w", err)
	}

	out := map[string][]string{
		AffectedCreated: {},
		AffectedUpdated: {},
		AffectedDeleted: {},
		"Rejected":      {},
		"Failed":        {},
	}
	for _, f := range res.FilesAffected {
		out[f.Action] = append(out[f.Action], f.Filename)
	}
	for _, r := range res.Rejected {
		out["Rejected"] = append(out["Rejected"], r.Filename)
	}
	for _, f := range res.Failed {
		out["Failed"] = append(out["Failed"], f.Filename)
	}
	return out, nil
}

// DecodePlan parses an AI response without touching the disk. Unlike the
// processor it reports decode failures instead of falling back.
func DecodePlan(content string) (*ActionPlan, error) {
	return JSONPlanParser{}.Plan(content, Command{})
}
