package credentials

// Credentials represents the stored access tokens in credentials.toml.
type Credentials struct {
	Version  int                `toml:"version"`
	Profiles map[string]Profile `toml:"profiles"`
}

// Profile holds the tokens for one IroBot account.
type Profile struct {
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token,omitempty"`
}
