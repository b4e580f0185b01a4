package models

// Session is the credential pair created at registration.
type Session struct {
	IdentityID int64  `json:"identityId"`
	Token      string `json:"sessionToken"`
}

func (s Session) Valid() bool {
	return s.IdentityID > 0 && s.Token != ""
}
