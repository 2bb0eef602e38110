package contextkeys

// Custom key type to avoid collisions with other packages.
type contextKey string

// CurrentUserKey is the key under which the auth middleware stores the
// resolved account in the request context.
const CurrentUserKey = contextKey("currentUser")
