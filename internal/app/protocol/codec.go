package protocol

import (
	"encoding/json"
	"errors"
	"time"

	"relaychat/internal/pkg/errs"
)

// TimestampLayout is ISO-8601 in UTC with millisecond precision, e.g. 2026-10-16T09:30:00.123Z.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	errMissingUserID   = errors.New("userId is required")
	errMissingIsTyping = errors.New("isTyping must be a boolean")
)

// Timestamp formats t as a server timestamp.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a server timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// Peek returns the type of a raw frame without decoding the rest of it.
// A frame that is not a JSON object yields an ErrDecodeFrame error. A missing
// type yields the empty FrameType, which no handler recognizes.
func Peek(raw []byte) (FrameType, error) {
	var envelope struct {
		Type FrameType `json:"type"`
	}

	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", decodeError(err)
	}

	return envelope.Type, nil
}

// DecodeJoin decodes a join frame. A join without a userId is malformed.
func DecodeJoin(raw []byte) (JoinFrame, error) {
	var f JoinFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return JoinFrame{}, decodeError(err)
	}

	if f.UserID == "" {
		return JoinFrame{}, decodeError(errMissingUserID)
	}

	return f, nil
}

// DecodeMessage decodes a message frame.
func DecodeMessage(raw []byte) (MessageFrame, error) {
	var f MessageFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return MessageFrame{}, decodeError(err)
	}

	return f, nil
}

// DecodeTyping decodes a typing frame. isTyping must be present and boolean.
func DecodeTyping(raw []byte) (TypingFrame, error) {
	var wire struct {
		UserID   string `json:"userId"`
		Username string `json:"username"`
		IsTyping *bool  `json:"isTyping"`
	}

	if err := json.Unmarshal(raw, &wire); err != nil {
		return TypingFrame{}, decodeError(err)
	}

	if wire.IsTyping == nil {
		return TypingFrame{}, decodeError(errMissingIsTyping)
	}

	return TypingFrame{
		Type:     TypeTyping,
		UserID:   wire.UserID,
		Username: wire.Username,
		IsTyping: *wire.IsTyping,
	}, nil
}

// DecodeUserList decodes a presence frame.
func DecodeUserList(raw []byte) (UserListFrame, error) {
	var f UserListFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return UserListFrame{}, decodeError(err)
	}

	return f, nil
}

// DecodeConnection decodes a connection greeting.
func DecodeConnection(raw []byte) (ConnectionFrame, error) {
	var f ConnectionFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return ConnectionFrame{}, decodeError(err)
	}

	return f, nil
}

// Encode marshals a frame for the wire.
func Encode(frame any) ([]byte, error) {
	return json.Marshal(frame)
}

func decodeError(cause error) error {
	return errs.NewError(errs.ErrDecodeFrame, cause)
}
