package rpc

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"raisemoney/core/types"
)

const authClockSkew = 2 * time.Minute

type authenticator struct {
	secret   []byte
	issuer   string
	audience string
}

func newAuthenticator(secret, issuer, audience string) *authenticator {
	return &authenticator{
		secret:   []byte(strings.TrimSpace(secret)),
		issuer:   strings.TrimSpace(issuer),
		audience: strings.TrimSpace(audience),
	}
}

func hasBearer(r *http.Request) bool {
	return strings.TrimSpace(r.Header.Get("Authorization")) != ""
}

// authenticate resolves the caller principal from the bearer token subject.
func (a *authenticator) authenticate(r *http.Request) (types.Principal, *RPCError) {
	if len(a.secret) == 0 {
		return types.ZeroPrincipal, &RPCError{Code: codeUnauthorized, Message: "RPC authentication not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return types.ZeroPrincipal, &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return types.ZeroPrincipal, &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return types.ZeroPrincipal, &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	claims, err := a.parseToken(raw)
	if err != nil {
		return types.ZeroPrincipal, &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials", Data: err.Error()}
	}
	subject, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return types.ZeroPrincipal, &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials", Data: "subject required"}
	}
	caller, err := types.ParsePrincipal(subject)
	if err != nil {
		return types.ZeroPrincipal, &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials", Data: err.Error()}
	}
	return caller, nil
}

func (a *authenticator) parseToken(raw string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(authClockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("claims not map")
	}
	return claims, nil
}

// IssueToken signs an HS256 token naming subject as the caller. The CLI and
// tests use it to act as a principal.
func IssueToken(secret string, subject types.Principal, issuer, audience string, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("rpc: signing secret required")
	}
	claims := jwt.MapClaims{
		"sub": subject.String(),
		"iat": now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	if issuer = strings.TrimSpace(issuer); issuer != "" {
		claims["iss"] = issuer
	}
	if audience = strings.TrimSpace(audience); audience != "" {
		claims["aud"] = audience
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(strings.TrimSpace(secret)))
}

// callerFrom returns the authenticated principal, if any.
func callerFrom(ctx context.Context) (types.Principal, bool) {
	caller, ok := ctx.Value(ctxKeyCaller).(types.Principal)
	return caller, ok && !caller.IsZero()
}

func requireCaller(ctx context.Context) (types.Principal, error) {
	caller, ok := callerFrom(ctx)
	if !ok {
		return types.ZeroPrincipal, &rpcFailure{
			status: http.StatusUnauthorized,
			err:    &RPCError{Code: codeUnauthorized, Message: "caller identity required"},
		}
	}
	return caller, nil
}
