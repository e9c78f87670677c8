/*
Package randx provides functions for generating cryptographically secure random identifiers.

It generates the client-side user IDs sent in join frames, the fallback display
names used by the terminal client and the UUIDs that name server-side connections.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// UserIDPrefix is prepended to every generated user ID.
	UserIDPrefix = "user-"

	// UserIDRawLength is the length of the Base62 part of a generated user ID.
	UserIDRawLength = 10

	// NicknamePrefix is prepended to generated display names.
	NicknamePrefix = "User_"

	// NicknameRawLength is the length of the Base62 part of a generated display name.
	NicknameRawLength = 6
)

// Base62 returns n characters drawn uniformly from Base62Chars using crypto/rand.
func Base62(n int) (string, error) {
	result := make([]byte, n)

	for i := range n {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// UserID generates a client-side user identifier such as "user-4fZq0LmA9c".
// IDs are not coordinated with the server, so collisions are possible.
func UserID() (string, error) {
	raw, err := Base62(UserIDRawLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate user id: %w", err)
	}

	return UserIDPrefix + raw, nil
}

// Nickname generates a random display name with the "User_" prefix.
func Nickname() (string, error) {
	raw, err := Base62(NicknameRawLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate nickname: %w", err)
	}

	return NicknamePrefix + raw, nil
}

// PeerID generates a UUID v4 string naming one server-side connection.
func PeerID() string {
	return uuid.New().String()
}
