package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Limiter: deps.Limiter}
	friends := FriendHandler{Users: deps.Users, Sessions: deps.Sessions, Engine: deps.Engine, Gate: deps.Gate, Lister: deps.Lister}
	messages := MessageHandler{Users: deps.Users, Sessions: deps.Sessions, Messages: deps.Messages, Archiver: deps.Archiver}
	users := UserHandler{Users: deps.Users, Sessions: deps.Sessions, Directory: deps.Directory}
	interests := InterestsHandler{Sessions: deps.Sessions, Interests: deps.Interests}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/v1/auth/signup", auth.SignUp)
	mux.HandleFunc("/api/v1/auth/login", auth.Login)
	mux.HandleFunc("/api/v1/auth/refresh", auth.Refresh)
	mux.HandleFunc("/api/v1/auth/logout", auth.Logout)
	mux.HandleFunc("/api/v1/friends", friends.List)
	mux.HandleFunc("/api/v1/friends/request", friends.Request)
	mux.HandleFunc("/api/v1/friends/respond", friends.Respond)
	mux.HandleFunc("/api/v1/friends/remove", friends.Remove)
	mux.HandleFunc("/api/v1/friends/pending", friends.Pending)
	mux.HandleFunc("/api/v1/messages", messages.Send)
	mux.HandleFunc("/api/v1/messages/conversation", messages.Conversation)
	mux.HandleFunc("/api/v1/messages/archive", messages.Archive)
	mux.HandleFunc("/api/v1/users/me", users.Me)
	mux.HandleFunc("/api/v1/users/points", users.Points)
	mux.HandleFunc("/api/v1/users/limit", users.TimeLimit)
	mux.HandleFunc("/api/v1/interests", interests.Handle)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users     UserStore
	Sessions  SessionManager
	Engine    RelationshipEngine
	Gate      FriendGate
	Lister    FriendLister
	Messages  MessageSender
	Archiver  ArchiveScheduler
	Interests InterestsStore
	Limiter   RateLimiter
	Directory DirectoryInvalidator
}
