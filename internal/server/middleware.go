package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mytask/internal/auth"
	"mytask/internal/domain/errors"
	"mytask/internal/domain/models"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// TokenValidator resolves a bearer token to the identity it was issued for.
type TokenValidator interface {
	Validate(token string) (models.Identity, error)
}

// AuthRequired is the access guard for task routes. It aborts with 401 unless
// the request carries a valid bearer token, and otherwise attaches the
// caller's identity to both the gin context and the request context.
func AuthRequired(tokens TokenValidator, log *slog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, ok := bearerToken(ctx.GetHeader("Authorization"))
		if !ok {
			abortWithError(ctx, errors.Unauthorized("Authorization token required"))
			return
		}

		id, err := tokens.Validate(token)
		if err != nil {
			log.DebugContext(ctx.Request.Context(), "rejected bearer token", "error", err, "path", ctx.FullPath())
			msg := "Invalid token"
			if errors.Is(err, errors.ErrExpiredToken) {
				msg = "Token has expired"
			}
			abortWithError(ctx, errors.Unauthorized(msg))
			return
		}

		ctx.Set(identityKey, id)
		ctx.Request = ctx.Request.WithContext(auth.WithIdentity(ctx.Request.Context(), id))
		ctx.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// identityFrom returns the identity set by AuthRequired.
func identityFrom(ctx *gin.Context) (models.Identity, bool) {
	v, exists := ctx.Get(identityKey)
	if !exists {
		return auth.IdentityFrom(ctx.Request.Context())
	}
	id, ok := v.(models.Identity)
	return id, ok && id.UserID != ""
}

// RequestLogger logs one line per request after it has been served.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		path := ctx.Request.URL.Path

		ctx.Next()

		status := ctx.Writer.Status()
		attrs := []any{
			"method", ctx.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", ctx.ClientIP(),
		}
		if id, ok := identityFrom(ctx); ok {
			attrs = append(attrs, "user_id", id.UserID)
		}

		switch {
		case status >= http.StatusInternalServerError:
			log.ErrorContext(ctx.Request.Context(), "request", attrs...)
		case status >= http.StatusBadRequest:
			log.WarnContext(ctx.Request.Context(), "request", attrs...)
		default:
			log.InfoContext(ctx.Request.Context(), "request", attrs...)
		}
	}
}

func abortWithError(ctx *gin.Context, err error) {
	kind := errors.KindOf(err)
	ctx.AbortWithStatusJSON(errors.HTTPStatus(kind), errorBody(err))
}

func errorBody(err error) *errors.Error {
	return &errors.Error{Kind: errors.KindOf(err), Message: errors.MessageOf(err)}
}
