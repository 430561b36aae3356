// Package auth provides credential and bearer-token primitives for Haven.
//
// # Overview
//
// This package holds everything the request gates in pkg/middleware need that does not
// touch HTTP routing or storage: account and role types, password hashing and policy,
// opaque token generation, and signed bearer tokens.
//
// # Passwords
//
//	hash, err := auth.HashPassword("Sunny-Loft-42")     // bcrypt, cost 12
//	ok, err := auth.ComparePassword("Sunny-Loft-42", hash)
//	res := auth.ValidatePasswordStrength("abcdefG1")     // IsValid, Errors, Strength, Score
//	auth.IsCommonPassword("Password123")                 // true
//
// # Bearer Tokens
//
//	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: secret})
//	token, err := issuer.GenerateToken(account.ID, account.Role, account.Email)
//	claims, err := issuer.VerifyToken(token) // errors.Is(err, auth.ErrInvalidToken)
//
// Tokens are stateless: there is no server-side session. The role claim is informational;
// gates reload the account and authorise on its current role.
//
// # Opaque Tokens
//
// GenerateSecureToken and GenerateRefreshToken return hex strings for out-of-band flows
// such as password reset. Store only HashToken(raw).
package auth
