package handlers

// ErrorResponse is the JSON envelope returned by every failing endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
