package apiclient

// Route path constants, relative to the configured API base URL
const (
	// Auth Routes
	RouteLogin        = "/auth/login/"
	RouteMe           = "/auth/me/"
	RouteRegister     = "/auth/register/"
	RouteTokenRefresh = "/auth/token/refresh/"

	// Contact Routes
	RouteContact = "/contact/"
)

const (
	contentTypeJSON = "application/json"
	headerRequestID = "X-Request-ID"
)
