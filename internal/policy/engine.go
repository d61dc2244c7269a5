// Package policy evaluates record flow transitions against a rego policy.
package policy

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"

	"github.com/xiaot623/dailymission/internal/domain"
)

// Decisions returned by the policy.
const (
	DecisionAllow  = "allow"
	DecisionReject = "reject"
)

// DefaultPolicy is the built-in record flow policy.
//
//go:embed record_flow.rego
var DefaultPolicy string

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine prepares the given record_flow policy module.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.record_flow.result"),
		rego.Module("record_flow.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// LoadPolicy reads a policy file. An empty path yields DefaultPolicy.
func LoadPolicy(path string) (string, error) {
	if path == "" {
		return DefaultPolicy, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read flow policy: %w", err)
	}
	return string(data), nil
}

// Evaluate returns the decision and optional reason for a transition.
func (e *Engine) Evaluate(ctx context.Context, t domain.Transition) (string, string, error) {
	input, err := toInput(t)
	if err != nil {
		return "", "", err
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionReject, "policy returned no result", nil
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return DecisionReject, "unexpected policy result", nil
	}
	decision, _ := obj["decision"].(string)
	reason, _ := obj["reason"].(string)
	if decision == "" {
		decision = DecisionReject
	}
	return decision, reason, nil
}

// Allow reports whether the transition is permitted.
func (e *Engine) Allow(ctx context.Context, t domain.Transition) (bool, string, error) {
	decision, reason, err := e.Evaluate(ctx, t)
	if err != nil {
		return false, "", err
	}
	return decision == DecisionAllow, reason, nil
}

// toInput converts the transition into the plain map rego expects.
func toInput(t domain.Transition) (map[string]interface{}, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode policy input: %w", err)
	}
	var input map[string]interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("decode policy input: %w", err)
	}
	return input, nil
}
