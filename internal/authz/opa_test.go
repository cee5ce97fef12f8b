package authz

import (
	"context"
	"testing"
)

func TestEvaluate(t *testing.T) {
	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	ctx := context.Background()

	cases := []struct {
		role         string
		path         string
		wantAllow    bool
		wantRedirect string
	}{
		{"admin", "/admindashboard", true, ""},
		{"admin", "/users/by-role-and-status", true, ""},
		{"admin", "/admin/users/:userId/approve", true, ""},
		{"admin", "/studies", true, ""},
		{"ta", "/tadashboard", true, ""},
		{"ta", "/studies", true, ""},
		{"ta", "/studies/by-ta/:taId", true, ""},
		{"ta", "/users/logout", true, ""},
		{"ta", "/admindashboard", false, "/tadashboard"},
		{"ta", "/nonverifiedtadashboard", false, "/tadashboard"},
		{"ta", "/admin/users/:userId/approve", false, "/tadashboard"},
		{"nta", "/nonverifiedtadashboard", true, ""},
		{"nta", "/users/:userId/sign-agreement", true, ""},
		{"nta", "/studies/by-ta/:taId", true, ""},
		{"nta", "/users/logout", true, ""},
		{"nta", "/tadashboard", false, "/nonverifiedtadashboard"},
		{"nta", "/studies", false, "/nonverifiedtadashboard"},
		{"nta", "/users/by-role-and-status", false, "/nonverifiedtadashboard"},
		{"", "/admindashboard", false, ""},
	}
	for _, c := range cases {
		d, err := e.Evaluate(ctx, c.role, "GET", c.path)
		if err != nil {
			t.Errorf("Evaluate(%q, %q): %v", c.role, c.path, err)
			continue
		}
		if d.Allow != c.wantAllow || d.Redirect != c.wantRedirect {
			t.Errorf("Evaluate(%q, %q) = %+v, want allow=%v redirect=%q",
				c.role, c.path, d, c.wantAllow, c.wantRedirect)
		}
	}
}

func TestHealthCheck(t *testing.T) {
	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}
