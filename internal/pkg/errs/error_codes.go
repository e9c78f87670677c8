/*
Package errs provides custom error types and application-level error code constants.

These error codes identify request-level failures on the HTTP surface and the
relay failure taxonomy (decode, transport, send and reconnect failures) shared by
the server and the chat client.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrOriginNotAllowed indicates that a WebSocket upgrade came from an origin outside the allow list.
	ErrOriginNotAllowed = 1008
)

// 4xxx: Relay Errors
const (
	// ErrDecodeFrame indicates that an inbound frame could not be parsed.
	// The frame is dropped and the connection stays open.
	ErrDecodeFrame = 4001

	// ErrTransport indicates a socket-level failure. It follows the normal close path.
	ErrTransport = 4002

	// ErrSendFailure indicates that a single fan-out target could not accept a frame.
	ErrSendFailure = 4003

	// ErrReconnectExhausted is the terminal client state after the last allowed retry failed.
	ErrReconnectExhausted = 4101

	// ErrNotConnected indicates that an outbound event was rejected because the client is not open.
	ErrNotConnected = 4102

	// ErrEmptyText indicates that a chat message without text was rejected before sending.
	ErrEmptyText = 4103

	// ErrHubStopped indicates that the relay hub is no longer accepting work.
	ErrHubStopped = 4201
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
