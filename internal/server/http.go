// Package server assembles the gin router from the area handlers and the
// middleware chain.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	accounthandler "trading-advisory/backend/internal/account/handler"
	agreementhandler "trading-advisory/backend/internal/agreement/handler"
	"trading-advisory/backend/internal/audit"
	"trading-advisory/backend/internal/authz"
	devotphandler "trading-advisory/backend/internal/devotp/handler"
	"trading-advisory/backend/internal/health"
	"trading-advisory/backend/internal/security"
	"trading-advisory/backend/internal/server/middleware"
	"trading-advisory/backend/internal/server/respond"
	studyhandler "trading-advisory/backend/internal/study/handler"
)

// Deps carries everything the router needs. DevOTP is nil unless dev OTP mode
// is on; Audit may be nil to disable the audit trail.
type Deps struct {
	Registration *accounthandler.RegistrationHandler
	Auth         *accounthandler.AuthHandler
	Admin        *accounthandler.AdminHandler
	Agreements   *agreementhandler.Handler
	Studies      *studyhandler.Handler
	DevOTP       *devotphandler.Handler
	Health       *health.Handler

	Tokens      *security.TokenProvider
	Sessions    middleware.SessionLookup
	Accounts    middleware.AccountLookup
	Authz       *authz.Evaluator
	Audit       audit.AuditLogger
	ServiceName string
}

// NewRouter builds the full route table. Public endpoints carry no auth; every
// authenticated route goes through bearer auth and then the route policy
// guard. Dashboard pages redirect to /login instead of returning a JSON 401.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Tracing(d.ServiceName))
	r.Use(middleware.Audit(d.Audit))

	auth := middleware.NewAuthenticator(d.Tokens, d.Sessions, d.Accounts)

	r.GET("/health", d.Health.Check)

	// Registration and login are reachable without a token.
	r.POST("/users/register", d.Registration.Register)
	r.POST("/users/submit-otp", d.Registration.SubmitOTP)
	r.POST("/users/resend-otp", d.Registration.ResendOTP)
	r.POST("/users/login", d.Auth.Login)

	// The e-sign provider redirects here; the single-use token authenticates.
	r.GET("/esign/callback", d.Agreements.Callback)

	if d.DevOTP != nil {
		r.GET("/dev/otp/:userId", d.DevOTP.Get)
	}

	authed := r.Group("/")
	authed.Use(auth.RequireAuth())
	authed.Use(middleware.RouteGuard(d.Authz))
	{
		authed.POST("/users/logout", d.Auth.Logout)
		authed.POST("/users/:userId/sign-agreement", d.Agreements.SignAgreement)
		authed.GET("/users/by-role-and-status", d.Admin.List)

		authed.GET("/agreements", d.Agreements.History)

		authed.GET("/studies", d.Studies.List)
		authed.GET("/studies/by-ta/:taId", d.Studies.ListByTA)
		authed.POST("/studies", d.Studies.Publish)

		// The path segment of /approve names the acting admin, not the target;
		// gin requires one wildcard name per position, so it registers as
		// :userId like its siblings.
		admin := authed.Group("/admin")
		{
			admin.GET("/users/:userId", d.Admin.Get)
			admin.POST("/users/:userId/approve", d.Admin.Approve)
			admin.POST("/users/:userId/nsim", d.Admin.UploadNSIM)
			admin.POST("/users/:userId/link-nsim", d.Admin.LinkNSIM)
			admin.POST("/users/:userId/esign-agreement-by-admin", d.Agreements.AdminCounterSign)
		}
	}

	pages := r.Group("/")
	pages.Use(auth.RequirePageAuth())
	pages.Use(middleware.RouteGuard(d.Authz))
	{
		pages.GET("/admindashboard", dashboard("admin"))
		pages.GET("/tadashboard", dashboard("ta"))
		pages.GET("/nonverifiedtadashboard", dashboard("nta"))
	}

	return r
}

// dashboard is the landing payload for each role's dashboard route. The route
// guard has already verified the caller's role matches.
func dashboard(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := middleware.IdentityFrom(c)
		if id == nil {
			respond.Error(c, http.StatusUnauthorized, "unauthenticated", "missing identity")
			return
		}
		respond.Success(c, http.StatusOK, gin.H{
			"dashboard": role,
			"accountId": id.AccountID,
			"username":  id.Username,
			"status":    string(id.Status),
		})
	}
}
