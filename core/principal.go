package core

// Principal is an authenticated identity, as known by the identity provider.
type Principal struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	SessionID string `json:"-"`
}

func (p *Principal) IsZero() bool {
	return p == nil || p.ID == ""
}
