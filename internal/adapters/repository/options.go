package repository

// Option applies a configuration option to the SQLite repository.
type Option func(*SQLite)

// WithPragmas appends PRAGMA statements run after the defaults.
func WithPragmas(pragmas ...string) Option {
	return func(s *SQLite) {
		s.pragmas = append(s.pragmas, pragmas...)
	}
}

// WithMaxOpenConns caps the connection pool. In-memory databases are always
// pinned to one connection.
func WithMaxOpenConns(n int) Option {
	return func(s *SQLite) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}
