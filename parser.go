package smartedit

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// PlanSource turns a raw completion into an action plan. The JSON parser
// and the fallback rule table both implement it.
type PlanSource interface {
	Plan(raw string, cmd Command) (*ActionPlan, error)
}

type ParsedPlan struct {
	Plan     *ActionPlan
	Degraded bool
	Cause    error
}

var (
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
	errNoJSONObject      = errors.New("no JSON object in completion")
)

type rawAction struct {
	Action   string          `json:"action"`
	Filename string          `json:"filename"`
	Path     string          `json:"path"`
	Content  json.RawMessage `json:"content"`
	Reason   string          `json:"reason"`
}

type rawPlan struct {
	Summary string      `json:"summary"`
	Actions []rawAction `json:"actions"`
}

type JSONPlanParser struct{}

func (JSONPlanParser) Plan(raw string, _ Command) (*ActionPlan, error) {
	body := StripFences(raw)

	var rp rawPlan
	err := json.Unmarshal([]byte(body), &rp)
	if err != nil {
		obj := extractObject(body)
		if obj == "" {
			return nil, errNoJSONObject
		}
		if err = json.Unmarshal([]byte(obj), &rp); err != nil {
			if err = json.Unmarshal([]byte(cleanJSON(obj)), &rp); err != nil {
				return nil, fmt.Errorf("decode action plan: %w", err)
			}
		}
	}
	if rp.Actions == nil {
		return nil, errors.New("decode action plan: missing actions array")
	}

	plan := &ActionPlan{Summary: strings.TrimSpace(rp.Summary), Actions: make([]FileAction, 0, len(rp.Actions))}
	for _, ra := range rp.Actions {
		plan.Actions = append(plan.Actions, ra.toFileAction())
	}
	return plan, nil
}

func (ra rawAction) toFileAction() FileAction {
	kind, ok := ParseActionKind(ra.Action)
	if !ok {
		kind = ActionKind(strings.ToLower(strings.TrimSpace(ra.Action)))
	}

	name := strings.TrimSpace(ra.Filename)
	if name == "" {
		name = strings.TrimSpace(ra.Path)
	}

	a := FileAction{Kind: kind, Filename: name, Reason: ra.Reason}
	if len(ra.Content) > 0 && string(ra.Content) != "null" {
		var s string
		if json.Unmarshal(ra.Content, &s) == nil {
			a.Content = &s
		}
	}
	return a
}

// extractObject returns the span from the first '{' to the last '}'.
func extractObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// cleanJSON drops // comments outside strings and trailing commas, the two
// artifacts models add most often. Only used once strict decoding failed.
func cleanJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	return trailingCommaPattern.ReplaceAllString(strings.Join(lines, "\n"), "$1")
}

func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}
	inString, escaped := false, false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/':
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}

type ResponseParser struct {
	primary  PlanSource
	fallback PlanSource
	logger   *zap.Logger
}

func NewResponseParser(fallback PlanSource, logger *zap.Logger) *ResponseParser {
	if fallback == nil {
		fallback = DefaultFallbackRules()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResponseParser{primary: JSONPlanParser{}, fallback: fallback, logger: logger}
}

// Parse never fails: a completion that cannot be decoded degrades into the
// fallback plan.
func (p *ResponseParser) Parse(raw string, cmd Command) ParsedPlan {
	plan, err := p.primary.Plan(raw, cmd)
	if err == nil {
		return ParsedPlan{Plan: plan}
	}
	return p.Degrade(cmd, err)
}

// Degrade builds the fallback plan for cmd, recording why it was needed.
func (p *ResponseParser) Degrade(cmd Command, cause error) ParsedPlan {
	p.logger.Warn("Falling back to template plan", zap.String("command", cmd.Text), zap.Error(cause))

	plan, err := p.fallback.Plan("", cmd)
	if err != nil || plan == nil || len(plan.Actions) == 0 {
		p.logger.Error("Fallback source failed, using built-in rules", zap.Error(err))
		plan, _ = DefaultFallbackRules().Plan("", cmd)
	}
	return ParsedPlan{Plan: plan, Degraded: true, Cause: cause}
}
