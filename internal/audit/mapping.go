package audit

import (
	"net/http"
	"strings"
)

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// resourceNames maps leading route segments to audit resource names.
var resourceNames = map[string]string{
	"users":      "user",
	"admin":      "user", // admin routes operate on user accounts
	"studies":    "study",
	"agreements": "agreement",
	"esign":      "agreement",
	"dev":        "dev",
}

// ParseRoute returns action and resource for an HTTP method and route template
// (e.g. POST /admin/users/:id/approve). The trailing literal segment names the
// action when present; otherwise the action follows the method.
func ParseRoute(method, route string) ActionResource {
	segments := splitRoute(route)
	if len(segments) == 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	resource, ok := resourceNames[segments[0]]
	if !ok {
		resource = segments[0]
	}

	last := segments[len(segments)-1]
	if len(segments) > 1 && !strings.HasPrefix(last, ":") && last != segments[0] {
		return ActionResource{Action: verbToAction(last), Resource: resource}
	}
	return ActionResource{Action: methodToAction(method, last), Resource: resource}
}

func splitRoute(route string) []string {
	var out []string
	for _, s := range strings.Split(route, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func verbToAction(segment string) string {
	return strings.ReplaceAll(strings.ToLower(segment), "-", "_")
}

func methodToAction(method, last string) string {
	switch method {
	case http.MethodGet:
		if strings.HasPrefix(last, ":") {
			return "get"
		}
		return "list"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
