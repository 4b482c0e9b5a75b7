package echoapi

import (
	"context"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/baraza/core"
	"github.com/trezcool/baraza/core/guest"
	"github.com/trezcool/baraza/core/identity"
)

const (
	jwtContextKey      = "userToken"
	contextIdentityKey = "identity"
	bearerScheme       = "Bearer"
	tokenAudience      = "Baraza"
)

// Claims represents the authorization claims transmitted via a JWT.
// The subject is the profile id; the role is informative, the profile store decides.
type Claims struct {
	jwt.StandardClaims
	Role identity.Role `json:"role,omitempty"`
	Name string        `json:"name,omitempty"`
}

func GetProfileClaims(prof identity.Profile, conf *core.Config, ttl time.Duration) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   prof.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		Role: prof.Role,
		Name: prof.DisplayName,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// authenticator resolves bearer credentials: a JWT for accounts, a session token for guests.
type authenticator struct {
	jwtConf  middleware.JWTConfig
	profiles *identity.Service
	guests   *guest.Service
}

var _ identity.Resolver = (*authenticator)(nil) // interface compliance check

func newAuthenticator(conf *core.Config, profiles *identity.Service, guests *guest.Service) *authenticator {
	a := &authenticator{
		profiles: profiles,
		guests:   guests,
	}
	a.jwtConf = middleware.JWTConfig{
		Skipper:       a.isGuestRequest,
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    jwtContextKey,
		Claims:        new(Claims),
	}
	return a
}

func bearerToken(ctx echo.Context) string {
	auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
	if len(auth) > len(bearerScheme)+1 && strings.EqualFold(auth[:len(bearerScheme)], bearerScheme) {
		return strings.TrimSpace(auth[len(bearerScheme)+1:])
	}
	return ""
}

func (a *authenticator) isGuestRequest(ctx echo.Context) bool {
	return guest.IsSessionToken(bearerToken(ctx))
}

func (a *authenticator) jwtMiddleware() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(a.jwtConf)
}

// identityMiddleware stores the caller's identity.Identity in the echo.Context.
// It runs after jwtMiddleware, which already rejected requests without a valid credential.
func (a *authenticator) identityMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			var (
				caller identity.Identity
				err    error
			)
			reqCtx := ctx.Request().Context()
			if token, ok := ctx.Get(jwtContextKey).(*jwt.Token); ok {
				caller, err = a.resolveClaims(reqCtx, token)
			} else {
				caller, err = a.guests.Resolve(reqCtx, bearerToken(ctx))
			}
			if err != nil {
				return err
			}
			ctx.Set(contextIdentityKey, caller)
			return next(ctx)
		}
	}
}

func (a *authenticator) resolveClaims(ctx context.Context, token *jwt.Token) (identity.Identity, error) {
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, core.ErrUnauthenticated
	}
	return a.profiles.Resolve(ctx, claims.Subject)
}

// Resolve turns a raw bearer credential into an identity.
func (a *authenticator) Resolve(ctx context.Context, credential string) (identity.Identity, error) {
	if guest.IsSessionToken(credential) {
		return a.guests.Resolve(ctx, credential)
	}
	token, err := jwt.ParseWithClaims(credential, new(Claims), func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != a.jwtConf.SigningMethod {
			return nil, errors.Errorf("unexpected jwt signing method=%v", t.Header["alg"])
		}
		return a.jwtConf.SigningKey, nil
	})
	if err != nil || !token.Valid {
		return nil, core.ErrUnauthenticated
	}
	return a.resolveClaims(ctx, token)
}

func getContextIdentity(ctx echo.Context) (identity.Identity, error) {
	if caller, ok := ctx.Get(contextIdentityKey).(identity.Identity); ok {
		return caller, nil
	}
	return nil, core.ErrUnauthenticated
}
