package model

// RegisterTokenRequest is the request body for registering a device token.
type RegisterTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
)

var (
	ErrInvalidPlatform     = newError(ErrValidation, "platform must be ios or android")
	ErrDeviceTokenRequired = newError(ErrValidation, "device token is required")
)
