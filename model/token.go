package model

// Claims is the identity embedded in a session token.
type Claims struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(claims Claims) (string, error)
}

// TokenVerifier validates session tokens and decodes their claims.
type TokenVerifier interface {
	Verify(token string) (Claims, error)
}

// TokenManager issues and verifies session tokens.
type TokenManager interface {
	TokenIssuer
	TokenVerifier
}
