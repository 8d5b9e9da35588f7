package common

// Header names carrying the token triple on responses and the credentials on
// authenticated requests.
const (
	AccessTokenHeaderName  = "Access-Token"
	ExpireAtHeaderName     = "Expire-At"
	RefreshTokenHeaderName = "Refresh-Token"
	AuthorizationHeader    = "Authorization"
)
