package models

import "time"

// User represents an account within the CircleNet platform.
type User struct {
	ID              string
	Username        string
	Password        string
	PendingRequests []string
	Points          int
	TimeLimit       int
	DateJoined      time.Time
	LastLogin       time.Time
}

// Relationship states. Declined requests and terminated friendships are
// deleted rather than marked, so these are the only persisted values.
const (
	RelationshipSent     = "sent"
	RelationshipAccepted = "accepted"
)

// Relationship captures a directed friend request and its current state.
// Requester initiated the request; Target received it. Once accepted the
// record stands for a bidirectional friendship, whichever orientation it
// happens to be stored in.
type Relationship struct {
	ID        string
	Requester string
	Target    string
	State     string
	CreatedAt time.Time
}

// Message is a direct message between two confirmed friends.
type Message struct {
	ID        string
	Sender    string
	Recipient string
	Body      string
	SentAt    time.Time
}

// Interests stores a user's interest survey: an ordered list of topics
// plus a flag for whether they want differing perspectives in their feed.
type Interests struct {
	ID        string
	UserID    string
	Topics    []string
	Different bool
	UpdatedAt time.Time
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
