// Package accounts persists Haven accounts and implements registration and login.
//
// A Store keeps account records together with their password hash and lockout
// state. FindByID and FindByEmail never return the password hash; only
// FindByEmailWithCredentials does, and it is reserved for the login path.
//
// Three stores are provided:
//
//	store := accounts.NewMemoryStore()                       // tests, local dev
//	store := accounts.NewSQLStore(db, accounts.DialectSQLite) // single node
//	store := accounts.NewSQLStore(db, accounts.DialectPostgres)
//
// Service sits on top of a Store and a token issuer:
//
//	svc := accounts.NewService(store, issuer, accounts.LockoutPolicy{})
//	res, err := svc.Login(ctx, email, password)
//	if errors.Is(err, accounts.ErrInvalidCredentials) { ... }
package accounts
