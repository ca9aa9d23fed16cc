package sqlite

import "github.com/provelo/assay/internal/session"

// Ensure the SQLite store implements the session storage interface.
var _ session.Store = (*SessionStore)(nil)
