package domain

// Profile is the owner-level account record the server consults for opt-in
// flags. Account management itself lives outside this service.
type Profile struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	CommunityEnabled bool   `json:"communityEnabled"`
}
