package core

type Config struct {
	// JWT configuration
	JWTSecret      string // Secret key for signing action tokens
	ActionTokenTTL int    // Default action token lifetime in seconds

	// One-time code configuration
	ConfirmCodeTTL int // Email confirmation code lifetime in seconds
	StrongCodeTTL  int // Link-embedded code lifetime in seconds

	// OAuth handoff configuration
	PendingLoginTTL int // Pending login entry lifetime in seconds

	// Cache sweep interval in seconds for abandoned entries
	SweepInterval int
}
