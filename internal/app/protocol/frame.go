/*
Package protocol defines the wire taxonomy exchanged between the relay server and its clients.

Every frame is one JSON object sent as a WebSocket text message and carries a
"type" discriminator. This file defines the frame types and their structs.
*/
package protocol

import (
	"relaychat/internal/app/user"
)

// FrameType is the "type" discriminator of a frame.
type FrameType string

const (
	// TypeJoin binds an identity to the sending connection (client to server).
	TypeJoin FrameType = "join"

	// TypeMessage carries chat text in both directions.
	TypeMessage FrameType = "message"

	// TypeTyping carries typing status in both directions.
	TypeTyping FrameType = "typing"

	// TypeUserList carries the presence roster (server to client).
	TypeUserList FrameType = "userList"

	// TypeConnection greets a freshly opened connection (server to client).
	TypeConnection FrameType = "connection"
)

// WelcomeMessage is the text of the connection greeting.
const WelcomeMessage = "Connected to server"

// JoinFrame is {type:"join", userId, username}.
type JoinFrame struct {
	Type     FrameType `json:"type"`
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
}

// Identity returns the identity asserted by the frame.
func (f JoinFrame) Identity() user.Identity {
	return user.Identity{UserID: f.UserID, DisplayName: f.Username}
}

// MessageFrame is a chat message. Timestamp is set by the server only.
// Encrypted and SenderPublicKey are opaque to the relay.
type MessageFrame struct {
	Type            FrameType `json:"type"`
	UserID          string    `json:"userId"`
	Username        string    `json:"username"`
	Text            string    `json:"text"`
	Encrypted       string    `json:"encrypted,omitempty"`
	SenderPublicKey string    `json:"senderPublicKey,omitempty"`
	Timestamp       string    `json:"timestamp,omitempty"`
}

// TypingFrame is {type:"typing", userId, username, isTyping}.
type TypingFrame struct {
	Type     FrameType `json:"type"`
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	IsTyping bool      `json:"isTyping"`
}

// UserListFrame is {type:"userList", users, count}. Count is the number of open
// connections and may exceed len(Users).
type UserListFrame struct {
	Type  FrameType `json:"type"`
	Users []string  `json:"users"`
	Count int       `json:"count"`
}

// ConnectionFrame greets a new connection with the number of open connections.
type ConnectionFrame struct {
	Type           FrameType `json:"type"`
	Message        string    `json:"message"`
	ConnectedUsers int       `json:"connectedUsers"`
}

// NewJoin builds the join frame for id.
func NewJoin(id user.Identity) JoinFrame {
	return JoinFrame{Type: TypeJoin, UserID: id.UserID, Username: id.DisplayName}
}

// NewMessage builds an unstamped message frame from id.
func NewMessage(id user.Identity, text string) MessageFrame {
	return MessageFrame{Type: TypeMessage, UserID: id.UserID, Username: id.DisplayName, Text: text}
}

// NewTyping builds a typing frame from id.
func NewTyping(id user.Identity, isTyping bool) TypingFrame {
	return TypingFrame{Type: TypeTyping, UserID: id.UserID, Username: id.DisplayName, IsTyping: isTyping}
}

// NewUserList builds a presence frame. A nil users slice is encoded as [].
func NewUserList(users []string, count int) UserListFrame {
	if users == nil {
		users = []string{}
	}
	return UserListFrame{Type: TypeUserList, Users: users, Count: count}
}

// NewConnection builds the greeting sent to a freshly opened connection.
func NewConnection(connected int) ConnectionFrame {
	return ConnectionFrame{Type: TypeConnection, Message: WelcomeMessage, ConnectedUsers: connected}
}
