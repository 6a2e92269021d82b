package api

import (
	"net/http"
	"strings"

	"github.com/snapquest/api/internal/middleware"
)

// RouterConfig wires the handler groups onto the API mux. Nil groups leave
// their routes unregistered.
type RouterConfig struct {
	Submissions *SubmissionHandlers
	Verify      *VerifyHandlers
	Override    *OverrideHandlers
	Audit       *AuditHandlers
	Specialist  *SpecialistHandlers
	Uploads     *UploadHandlers
	Health      *HealthHandlers

	// Validator guards the mutating routes. Required when Submissions,
	// Override, or Specialist are set.
	Validator TokenValidator

	// VerifyLimiter rate-limits the judge-backed routes (verify and
	// specialist checks). Optional.
	VerifyLimiter func(http.Handler) http.Handler

	// MetricsHandler serves /metrics when set (promhttp).
	MetricsHandler http.Handler
}

// NewRouter builds the API route table.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	requireAuth := passthrough
	requireAdmin := passthrough
	if cfg.Validator != nil {
		requireAuth = RequireAuth(cfg.Validator)
		requireAdmin = RequireAdmin(cfg.Validator)
	}
	limited := passthrough
	if cfg.VerifyLimiter != nil {
		limited = cfg.VerifyLimiter
	}

	if cfg.Health != nil {
		mux.HandleFunc("/health", cfg.Health.Health)
		mux.HandleFunc("/ready", cfg.Health.Ready)
	}
	if cfg.MetricsHandler != nil {
		mux.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Submissions != nil {
		mux.Handle("/submissions", requireAuth(methodHandler(http.MethodPost, cfg.Submissions.CreateSubmission)))
		mux.Handle("/submissions/", submissionSubtree(cfg, requireAuth, requireAdmin, limited))
	}

	if cfg.Verify != nil {
		mux.Handle("/outcomes/", methodHandler(http.MethodGet, cfg.Verify.GetOutcome))
	}

	if cfg.Uploads != nil {
		mux.Handle("/uploads", requireAuth(methodHandler(http.MethodPost, cfg.Uploads.SignedURL)))
	}

	mux.Handle("/users/", userSubtree(cfg))

	if cfg.Submissions != nil {
		mux.Handle("/quests/", methodHandler(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
			parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/quests/"), "/")
			if len(parts) == 2 && parts[1] == "submissions" {
				cfg.Submissions.ListByQuest(w, r)
				return
			}
			notFound(w, r)
		}))
	}

	if cfg.Audit != nil {
		mux.Handle("/audit/export", requireAdmin(methodHandler(http.MethodGet, cfg.Audit.Export)))
	}

	return mux
}

// submissionSubtree dispatches everything under /submissions/{id}.
func submissionSubtree(cfg RouterConfig, requireAuth, requireAdmin, limited func(http.Handler) http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/submissions/"), "/")
		if len(parts) == 0 || parts[0] == "" {
			notFound(w, r)
			return
		}

		if len(parts) == 1 {
			methodHandler(http.MethodGet, cfg.Submissions.GetSubmission).ServeHTTP(w, r)
			return
		}

		switch parts[1] {
		case "verify":
			if cfg.Verify == nil {
				notFound(w, r)
				return
			}
			requireAuth(limited(methodHandler(http.MethodPost, cfg.Verify.Verify))).ServeHTTP(w, r)
		case "outcomes":
			if cfg.Verify == nil {
				notFound(w, r)
				return
			}
			methodHandler(http.MethodGet, cfg.Verify.ListOutcomes).ServeHTTP(w, r)
		case "override":
			if cfg.Override == nil {
				notFound(w, r)
				return
			}
			requireAdmin(methodHandler(http.MethodPost, cfg.Override.Override)).ServeHTTP(w, r)
		case "audit":
			if cfg.Audit == nil {
				notFound(w, r)
				return
			}
			methodHandler(http.MethodGet, cfg.Audit.ListBySubmission).ServeHTTP(w, r)
		case "checks":
			if cfg.Specialist == nil {
				notFound(w, r)
				return
			}
			if len(parts) == 2 {
				requireAuth(limited(methodHandler(http.MethodPost, cfg.Specialist.Dispatch))).ServeHTTP(w, r)
				return
			}
			requireAuth(limited(http.HandlerFunc(cfg.Specialist.Check))).ServeHTTP(w, r)
		case "like":
			requireAuth(methodHandler(http.MethodPost, cfg.Submissions.Like)).ServeHTTP(w, r)
		case "comment":
			requireAuth(methodHandler(http.MethodPost, cfg.Submissions.Comment)).ServeHTTP(w, r)
		case "share":
			requireAuth(methodHandler(http.MethodPost, cfg.Submissions.Share)).ServeHTTP(w, r)
		default:
			notFound(w, r)
		}
	})
}

// userSubtree dispatches /users/{id}/{submissions|outcomes|audit}.
func userSubtree(cfg RouterConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/users/"), "/")
		if len(parts) != 2 || parts[0] == "" {
			notFound(w, r)
			return
		}
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r)
			return
		}

		switch parts[1] {
		case "submissions":
			if cfg.Submissions == nil {
				notFound(w, r)
				return
			}
			cfg.Submissions.ListByUser(w, r)
		case "outcomes":
			if cfg.Verify == nil {
				notFound(w, r)
				return
			}
			cfg.Verify.ListUserOutcomes(w, r)
		case "audit":
			if cfg.Audit == nil {
				notFound(w, r)
				return
			}
			cfg.Audit.ListByUser(w, r)
		default:
			notFound(w, r)
		}
	})
}

func passthrough(next http.Handler) http.Handler { return next }

// methodHandler rejects any method other than the given one.
func methodHandler(method string, fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			methodNotAllowed(w, r)
			return
		}
		fn(w, r)
	})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
	WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
	WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
}
