// Package query tracks join targets while a report query is composed, so
// the filter compiler and the report builders can both reach the same table
// without ever injecting the same join twice.
package query

import "gorm.io/gorm"

// State wraps a gorm statement plus the set of join targets already added.
type State struct {
	db     *gorm.DB
	joined map[string]bool
}

// New starts query composition from a base statement.
func New(db *gorm.DB) *State {
	return &State{db: db, joined: make(map[string]bool)}
}

// DB returns the composed statement.
func (s *State) DB() *gorm.DB {
	return s.db
}

// Joined reports whether the named join target is already present.
func (s *State) Joined(name string) bool {
	return s.joined[name]
}

// Join adds the join clause once; repeated calls for the same target are
// no-ops.
func (s *State) Join(name, clause string, args ...any) {
	if s.joined[name] {
		return
	}
	s.db = s.db.Joins(clause, args...)
	s.joined[name] = true
}

// Where appends a predicate.
func (s *State) Where(cond string, args ...any) {
	s.db = s.db.Where(cond, args...)
}
