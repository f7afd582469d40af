// Package jwt authenticates API callers with HS256 bearer tokens signed by
// github.com/golang-jwt/jwt/v5. The token subject is the user UUID and the
// optional email claim becomes the authenticator account label.
package jwt
