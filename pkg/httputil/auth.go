package httputil

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/regdocs/regdocs-backend/pkg/errors"
	"github.com/regdocs/regdocs-backend/pkg/logger"
)

// Authenticator validates HS256 bearer tokens issued by the identity service
// and puts the token subject into the request context as the user ID.
// An empty issuer disables the issuer check.
func Authenticator(secret, issuer string, log *logger.Logger) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				ErrorLocalized(w, r, errors.Unauthorized("missing authorization header"))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				ErrorLocalized(w, r, errors.Unauthorized("invalid authorization header format"))
				return
			}

			claims := &jwt.RegisteredClaims{}
			_, err := parser.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil {
				log.Debug().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("token validation failed")
				if errors.Is(err, jwt.ErrTokenExpired) {
					ErrorLocalized(w, r, errors.TokenExpired())
				} else {
					ErrorLocalized(w, r, errors.TokenInvalid())
				}
				return
			}

			if claims.Subject == "" {
				ErrorLocalized(w, r, errors.TokenInvalid())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.Subject)))
		})
	}
}
