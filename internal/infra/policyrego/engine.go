// Package policyrego evaluates the release rules as an embedded Rego
// policy. Keeping the rules in Rego makes the deny conditions auditable
// as data rather than scattered through gate code, and the restricted
// builtin set guarantees evaluation is pure: no clocks, no network, no
// randomness can leak into a release decision.
package policyrego

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"

	"lexipro/internal/domain"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
)

//go:embed release.rego
var releaseModule string

const (
	moduleFile   = "release.rego"
	releaseQuery = "data.lexipro.release.result"
)

type Engine struct {
	query rego.PreparedEvalQuery
}

func NewEngine(ctx context.Context) (*Engine, error) {
	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)
	compiler := ast.NewCompiler().WithCapabilities(capabilities)

	r := rego.New(
		rego.Query(releaseQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
		rego.Module(moduleFile, releaseModule),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	if err := assertNoForbiddenBuiltins(compiler); err != nil {
		return nil, err
	}
	return &Engine{query: prepared}, nil
}

type releaseResult struct {
	Allow bool     `json:"allow"`
	Deny  []string `json:"deny"`
}

// Evaluate renders the allow/deny decision for one verification run.
// The TimedOut flag is folded into the input explicitly because it is
// excluded from the report's JSON form.
func (e *Engine) Evaluate(ctx context.Context, counts domain.VerdictCounts, report domain.CorroborationReport, tolerance int) (bool, []domain.ReasonCode, error) {
	if e == nil {
		return false, nil, errors.New("policy engine is nil")
	}
	input := map[string]any{
		"counts": map[string]any{
			"total":       counts.Total,
			"anchored":    counts.Anchored,
			"unanchored":  counts.Unanchored,
			"crossTenant": counts.CrossTenant,
		},
		"report": map[string]any{
			"admissible":      report.Admissible,
			"anchoredCount":   report.AnchoredCount,
			"unanchoredCount": report.UnanchoredCount,
			"totalClaims":     report.TotalClaims,
			"timedOut":        report.TimedOut,
		},
		"tolerance": tolerance,
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, nil, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil, errors.New("empty policy result")
	}
	result, err := decodeReleaseResult(results[0].Expressions[0].Value)
	if err != nil {
		return false, nil, err
	}

	reasons := make([]domain.ReasonCode, 0, len(result.Deny))
	for _, code := range result.Deny {
		reasons = append(reasons, domain.ReasonCode(code))
	}
	return result.Allow, reasons, nil
}

func decodeReleaseResult(value any) (releaseResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return releaseResult{}, err
	}
	var result releaseResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return releaseResult{}, err
	}
	return result, nil
}
