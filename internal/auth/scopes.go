package auth

// ScopeRosterWrite grants signup and unregister.
const ScopeRosterWrite = "roster:write"
