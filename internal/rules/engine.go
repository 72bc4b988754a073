package rules

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"time"

	"example.com/fitsgate/internal/common"
	"example.com/fitsgate/internal/dict"
	"example.com/fitsgate/internal/fits"
)

type Severity string

const (
	ERROR Severity = "ERROR"
	WARN  Severity = "WARN"
	INFO  Severity = "INFO"
)

// RuleStage groups rules for the acceptance gate matrix.
type RuleStage string

const (
	StageStructure RuleStage = "structure"
	StageHeader    RuleStage = "header"
	StageSchema    RuleStage = "schema"
	StageData      RuleStage = "data"
)

type Rule struct {
	RuleId    string         `json:"ruleId"`
	Name      string         `json:"name,omitempty"`
	Scope     string         `json:"scope"` // file|hdu|header|table
	Stage     RuleStage      `json:"stage,omitempty"`
	Severity  Severity       `json:"severity"`
	CheckFunc string         `json:"checkFunction,omitempty"`
	Refs      []string       `json:"refs"`
	Params    map[string]any `json:"params,omitempty"`
	Message   string         `json:"message"`
}

type RulePack struct {
	RulePackId string `json:"rulePackId"`
	Version    string `json:"version"`
	Profile    string `json:"profile"`
	Rules      []Rule `json:"rules"`
}

type Diagnostic struct {
	Ts       time.Time `json:"ts"`
	File     string    `json:"file"`
	Hdu      int       `json:"hdu"`
	Offset   string    `json:"offset,omitempty"`
	Keyword  string    `json:"keyword,omitempty"`
	RuleId   string    `json:"ruleId"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	Refs     []string  `json:"refs"`
}

// GateResult is one row of the acceptance gate matrix.
type GateResult struct {
	Stage    RuleStage `json:"stage"`
	Severity Severity  `json:"severity"`
	RuleId   string    `json:"ruleId"`
	Name     string    `json:"name,omitempty"`
	Pass     bool      `json:"pass"`
	Findings int       `json:"findings"`
}

type AcceptanceReport struct {
	Summary struct {
		Total    int  `json:"total"`
		Errors   int  `json:"errors"`
		Warnings int  `json:"warnings"`
		Pass     bool `json:"pass"`
	} `json:"summary"`
	GateMatrix []GateResult `json:"gateMatrix"`
	Findings   []Diagnostic `json:"findings,omitempty"`
}

// Context carries the file under validation. EnsureFile opens and walks it
// once; checks share the resulting catalog. The file handle is
// single-threaded, so rules are evaluated serially per context.
type Context struct {
	InputFile string
	Profile   string
	Dict      *dict.Store
	Metrics   *common.Metrics

	File *fits.File

	owned bool
}

func (ctx *Context) EnsureFile() error {
	if ctx == nil {
		return errors.New("nil context")
	}
	if ctx.File != nil {
		return nil
	}
	if ctx.InputFile == "" {
		return errors.New("no input file")
	}
	f, err := fits.Open(ctx.InputFile)
	if err != nil {
		return err
	}
	if ctx.Metrics != nil {
		f.Catalog().SetMetrics(ctx.Metrics)
	}
	f.Count()
	ctx.File = f
	ctx.owned = true
	return nil
}

// Close releases a file handle that EnsureFile opened. Injected handles are
// left alone.
func (ctx *Context) Close() error {
	if ctx == nil || !ctx.owned || ctx.File == nil {
		return nil
	}
	err := ctx.File.Close()
	ctx.File = nil
	ctx.owned = false
	return err
}

// CheckFunc evaluates one rule against the context. Every rule invocation
// may yield multiple diagnostics (one per HDU, typically).
type CheckFunc func(ctx *Context, rule Rule) ([]Diagnostic, error)

type Engine struct {
	rulePack       RulePack
	registry       map[string]CheckFunc
	diagnostics    []Diagnostic
	callback       func(Diagnostic) error
	concurrency    int
	includeOffsets bool
}

func NewEngine(rp RulePack) *Engine {
	return &Engine{
		rulePack:       rp,
		registry:       make(map[string]CheckFunc),
		concurrency:    1,
		includeOffsets: true,
	}
}

func (e *Engine) Register(name string, f CheckFunc) {
	e.registry[name] = f
}

// SetDiagnosticCallback streams each diagnostic as it is produced, in rule
// order. Pass nil to disable.
func (e *Engine) SetDiagnosticCallback(cb func(Diagnostic) error) {
	e.callback = cb
}

// SetConcurrency records a parallelism bound (at least 1) that callers can
// read back through Concurrency; the engine itself does not consult it. One
// engine always evaluates serially: its rules share a single-threaded
// source handle.
func (e *Engine) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	e.concurrency = n
}

// Concurrency returns the configured bound.
func (e *Engine) Concurrency() int { return e.concurrency }

func (e *Engine) SetConfigValue(key string, value any) {
	if e == nil {
		return
	}
	switch key {
	case "diag.include_offsets":
		switch v := value.(type) {
		case bool:
			e.includeOffsets = v
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				e.includeOffsets = b
			}
		}
	}
}

func (e *Engine) Eval(ctx *Context) ([]Diagnostic, error) {
	if ctx == nil {
		return nil, errors.New("nil context")
	}
	if err := ctx.EnsureFile(); err != nil {
		return nil, err
	}
	defer ctx.Close()
	var diags []Diagnostic
	for _, r := range e.rulePack.Rules {
		if r.CheckFunc == "" {
			continue
		}
		fn, ok := e.registry[r.CheckFunc]
		if !ok {
			diags = append(diags, e.emit(Diagnostic{
				Ts: time.Now(), File: ctx.InputFile, RuleId: r.RuleId, Severity: WARN,
				Message: "no function for rule", Refs: r.Refs,
			}))
			continue
		}
		found, err := fn(ctx, r)
		if err != nil {
			diags = append(diags, e.emit(Diagnostic{
				Ts: time.Now(), File: ctx.InputFile, RuleId: r.RuleId, Severity: ERROR,
				Message: r.Message + " (" + err.Error() + ")", Refs: r.Refs,
			}))
			continue
		}
		for _, d := range found {
			diags = append(diags, e.emit(d))
		}
	}
	e.diagnostics = diags
	return diags, nil
}

func (e *Engine) emit(d Diagnostic) Diagnostic {
	if !e.includeOffsets {
		d.Offset = ""
	}
	if e.callback != nil {
		_ = e.callback(d)
	}
	return d
}

func (e *Engine) WriteDiagnosticsNDJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()
	for _, d := range e.diagnostics {
		b, _ := json.Marshal(d)
		w.Write(b)
		w.WriteString("\n")
	}
	return nil
}

func (e *Engine) MakeAcceptance() AcceptanceReport {
	var rep AcceptanceReport
	var errs, warns int
	perRule := make(map[string][]Diagnostic)
	for _, d := range e.diagnostics {
		switch d.Severity {
		case ERROR:
			errs++
		case WARN:
			warns++
		}
		perRule[d.RuleId] = append(perRule[d.RuleId], d)
	}
	for _, r := range e.rulePack.Rules {
		if r.CheckFunc == "" {
			continue
		}
		found := perRule[r.RuleId]
		pass := true
		for _, d := range found {
			if d.Severity == ERROR {
				pass = false
			}
		}
		findings := 0
		for _, d := range found {
			if d.Severity != INFO {
				findings++
			}
		}
		rep.GateMatrix = append(rep.GateMatrix, GateResult{
			Stage:    r.Stage,
			Severity: r.Severity,
			RuleId:   r.RuleId,
			Name:     r.Name,
			Pass:     pass,
			Findings: findings,
		})
	}
	rep.Summary.Total = len(e.diagnostics)
	rep.Summary.Errors = errs
	rep.Summary.Warnings = warns
	rep.Summary.Pass = errs == 0
	rep.Findings = e.diagnostics
	return rep
}

func LoadRulePack(path string) (RulePack, error) {
	var rp RulePack
	b, err := os.ReadFile(path)
	if err != nil {
		return rp, err
	}
	err = json.Unmarshal(b, &rp)
	return rp, err
}
