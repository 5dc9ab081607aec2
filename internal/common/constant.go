package common

// AuthorizationHeaderName carries "Bearer <access token>" on API requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix is the authorization scheme accepted by the API.
const BearerPrefix = "Bearer "

// RequestIDHeaderName echoes the per-request identifier to clients.
const RequestIDHeaderName = "X-Request-ID"
