package api

import (
	"context"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/yakoovad/finflow/internal/auth"
	"github.com/yakoovad/finflow/internal/model"
	"github.com/yakoovad/finflow/internal/service"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

const claimsKey = "claims"

func ZapLoggerMiddleware(l *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()

			requestID := c.Response().Header().Get(echo.HeaderXRequestID)

			reqLogger := l.With(
				zap.String("request_id", requestID),
			)

			ctx := logger.WithLogger(req.Context(), reqLogger)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)

			latency := time.Since(start)

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.String("remote_ip", c.RealIP()),
				zap.Int("status", res.Status),
				zap.Duration("latency", latency),
				zap.Int64("bytes_in", req.ContentLength),
				zap.Int64("bytes_out", res.Size),
			}

			if err != nil {
				fields = append(fields, zap.Error(err))
				reqLogger.Error("request failed", fields...)
			} else {
				reqLogger.Info("request completed", fields...)
			}

			return err
		}
	}
}

// AuthMiddleware verifies the bearer token and scopes the request logger to its user and team.
func AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
			if !ok || token == "" {
				return transportError(c, service.NewError(service.ErrorCodeUnauthorized, "missing bearer token"))
			}

			claims, err := auth.VerifyToken(token)
			if err != nil {
				logger.FromContext(c.Request().Context()).Warn("rejected token", zap.Error(err))
				return transportError(c, service.NewError(service.ErrorCodeUnauthorized, "invalid token"))
			}

			c.Set(claimsKey, claims)

			req := c.Request()
			l := logger.FromContext(req.Context()).With(
				zap.String("user_id", claims.UserID),
				zap.String("team_id", claims.TeamID),
			)
			c.SetRequest(req.WithContext(logger.WithLogger(req.Context(), l)))

			return next(c)
		}
	}
}

// MemberLookup resolves the caller's membership of a team.
type MemberLookup interface {
	Member(ctx context.Context, teamID, userID string) (*model.TeamMember, *service.Error)
}

// RequireTeam rejects callers whose token carries no team, or a team they no longer belong to.
func RequireTeam(members MemberLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := identity(c)
			if id.TeamID == "" {
				return transportError(c, service.NewError(service.ErrorCodeNoTeam, "select a team first"))
			}

			if _, err := members.Member(c.Request().Context(), id.TeamID, id.UserID); err != nil {
				if err.Code == service.ErrorCodeNotFound {
					logger.FromContext(c.Request().Context()).Warn("token for a team the user left")
					return transportError(c, service.NewError(service.ErrorCodeNoTeam, "not a member of this team"))
				}
				return transportError(c, err)
			}

			return next(c)
		}
	}
}

func identity(c echo.Context) *auth.TokenClaims {
	if claims, ok := c.Get(claimsKey).(*auth.TokenClaims); ok {
		return claims
	}
	return &auth.TokenClaims{}
}
