package wire

// ErrorResponse is the parsed <Error> body the object store returns on a
// non-2xx response: a short machine-readable Code and a human-readable
// Message.
type ErrorResponse struct {
	Code      string
	Message   string
	RequestID string
}

// ParseErrorResponse extracts the Code/Message/RequestId elements from an
// error response body. Missing elements are left as the zero value
// rather than treated as a parse failure — some error paths (a 500 from
// a load balancer, say) never reach the object store's own XML
// formatting.
func ParseErrorResponse(body []byte) ErrorResponse {
	var e ErrorResponse
	e.Code, _ = extractTopLevelTag(body, "Code")
	e.Message, _ = extractTopLevelTag(body, "Message")
	e.RequestID, _ = extractTopLevelTag(body, "RequestId")
	return e
}
