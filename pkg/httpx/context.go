package httpx

import "context"

type ctxKey string

const (
	CtxKeySubject ctxKey = "subject" // identity-provider subject
	CtxKeyEmail   ctxKey = "email"   // authenticated email
	CtxKeyScopes  ctxKey = "scopes"
)

// EmailFromContext returns the authenticated email injected by
// AuthnMiddleware, or "" when the request is unauthenticated.
func EmailFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyEmail).(string); ok {
		return v
	}
	return ""
}

// SubjectFromContext returns the identity-provider subject for the request.
func SubjectFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeySubject).(string); ok {
		return v
	}
	return ""
}

func scopesFromCtx(ctx context.Context) []string {
	if v, ok := ctx.Value(CtxKeyScopes).([]string); ok {
		return v
	}
	return nil
}
