/*
Package errs provides custom error types and application-level error code constants.

This file maps every error code to its CustomError template.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:     {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrOriginNotAllowed:  {Code: ErrOriginNotAllowed, Message: "Origin not allowed.", Status: http.StatusForbidden},

	// 4xxx: Relay Errors
	ErrDecodeFrame:        {Code: ErrDecodeFrame, Message: "Malformed frame: %v"},
	ErrTransport:          {Code: ErrTransport, Message: "Connection failure: %v"},
	ErrSendFailure:        {Code: ErrSendFailure, Message: "Could not deliver frame to %s."},
	ErrReconnectExhausted: {Code: ErrReconnectExhausted, Message: "Could not reconnect after %d attempts."},
	ErrNotConnected:       {Code: ErrNotConnected, Message: "Not connected to the chat server."},
	ErrEmptyText:          {Code: ErrEmptyText, Message: "Message text is empty."},
	ErrHubStopped:         {Code: ErrHubStopped, Message: "Chat relay is shutting down.", Status: http.StatusServiceUnavailable},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
