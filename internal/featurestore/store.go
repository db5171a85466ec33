// Feedrank - Personalized Post Recommendation Service
// Copyright 2026 Alex Smolin (asmolin)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/asmolin/feedrank

// Package featurestore loads the precomputed feature tables from
// Postgres at startup and holds them in memory for the lifetime of the
// process. The loaded datasets are read-only: they are never mutated
// after construction and are safe for unlimited concurrent readers
// without locking.
package featurestore

// User is one row of the user feature table.
type User struct {
	UserID   int
	Gender   int
	Age      int
	Country  string
	City     string
	ExpGroup int
}

// Post is one row of a post feature table. Text is display-only and is
// never fed to the model; Features are the model-ready numeric columns
// in table column order.
type Post struct {
	PostID   int
	Text     string
	Topic    string
	Features []float64
}

// PostTable is one variant's post feature table. Posts are ordered by
// ascending post id, which also serves as the deterministic ranking
// tie-break downstream.
type PostTable struct {
	Posts []Post
	// FeatureNames are the numeric column names in the order they
	// appear in each Post's Features slice.
	FeatureNames []string
}

// Like is one (user, post) interaction record. The set of likes is used
// only for membership filtering.
type Like struct {
	UserID int
	PostID int
}

// Store is the immutable in-memory view of the user and interaction
// tables. Post tables are held per variant by the recommendation
// service, not here, because the two experiment variants may use
// structurally different post schemas.
type Store struct {
	users map[int]User
	likes map[int]map[int]struct{}
}

// NewStore builds a Store from loaded rows. Duplicate user ids keep the
// last row; duplicate likes collapse into the set.
func NewStore(users []User, likes []Like) *Store {
	s := &Store{
		users: make(map[int]User, len(users)),
		likes: make(map[int]map[int]struct{}),
	}
	for _, u := range users {
		s.users[u.UserID] = u
	}
	for _, l := range likes {
		set := s.likes[l.UserID]
		if set == nil {
			set = make(map[int]struct{})
			s.likes[l.UserID] = set
		}
		set[l.PostID] = struct{}{}
	}
	return s
}

// User returns the feature row for one user id.
func (s *Store) User(id int) (User, bool) {
	u, ok := s.users[id]
	return u, ok
}

// Liked returns the set of post ids the user has previously liked.
// The returned map may be nil when the user has no likes; callers must
// treat it as read-only.
func (s *Store) Liked(userID int) map[int]struct{} {
	return s.likes[userID]
}

// UserCount returns the number of loaded users.
func (s *Store) UserCount() int {
	return len(s.users)
}

// LikeCount returns the total number of loaded like records.
func (s *Store) LikeCount() int {
	n := 0
	for _, set := range s.likes {
		n += len(set)
	}
	return n
}
