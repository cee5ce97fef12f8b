// Package authz decides route access from the derived frontend role using an
// in-process OPA Rego policy.
package authz

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const policyPackage = "advisory.routes"

// routePolicy maps frontend roles to the route prefixes they may reach, and
// names the dashboard to redirect to when a signed-in caller strays. Input
// paths are gin route templates, so a prefix may contain path parameters.
const routePolicy = `package advisory.routes

import rego.v1

default allow = false

dashboards := {
	"admin": "/admindashboard",
	"ta": "/tadashboard",
	"nta": "/nonverifiedtadashboard",
}

prefixes := {
	"admin": ["/admindashboard", "/admin", "/studies", "/users"],
	"ta": ["/tadashboard", "/studies", "/agreements", "/users/logout"],
	"nta": ["/nonverifiedtadashboard", "/studies/by-ta", "/agreements", "/users/logout", "/users/:userId/sign-agreement"],
}

allow if {
	some prefix in prefixes[input.frontend_role]
	startswith(input.path, prefix)
}

redirect := dashboards[input.frontend_role] if not allow
`

// Decision is the outcome of a route check. When Allow is false, Redirect holds
// the caller's own dashboard path (empty for roleless callers).
type Decision struct {
	Allow    bool
	Redirect string
}

// Evaluator evaluates the route policy. The policy is compiled once at startup.
type Evaluator struct {
	compiler *ast.Compiler
}

// NewEvaluator compiles the route policy.
func NewEvaluator() (*Evaluator, error) {
	compiler, err := ast.CompileModules(map[string]string{"routes.rego": routePolicy})
	if err != nil {
		return nil, fmt.Errorf("authz: compile route policy: %w", err)
	}
	return &Evaluator{compiler: compiler}, nil
}

// Evaluate checks whether the frontend role may reach method+path. Fails
// closed: any evaluation error denies with no redirect.
func (e *Evaluator) Evaluate(ctx context.Context, frontendRole, method, path string) (Decision, error) {
	input := map[string]interface{}{
		"frontend_role": frontendRole,
		"method":        method,
		"path":          path,
	}
	q := rego.New(
		rego.Query(fmt.Sprintf("data.%s", policyPackage)),
		rego.Compiler(e.compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("authz: eval route policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Decision{}, fmt.Errorf("authz: route policy returned no result")
	}
	doc, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("authz: unexpected policy document %T", rs[0].Expressions[0].Value)
	}
	var d Decision
	if allow, ok := doc["allow"].(bool); ok {
		d.Allow = allow
	}
	if redirect, ok := doc["redirect"].(string); ok {
		d.Redirect = redirect
	}
	return d, nil
}

// HealthCheck verifies the compiled policy evaluates. Returns nil on success.
func (e *Evaluator) HealthCheck(ctx context.Context) error {
	_, err := e.Evaluate(ctx, "admin", "GET", "/admindashboard")
	return err
}
