package common

import (
	"encoding/hex"
	"fmt"
)

// EncodeToString returns the UPPERCASE string representation of hexBytes with
// the 0X prefix
func EncodeToString(hexBytes []byte) string {
	return fmt.Sprintf("0X%X", hexBytes)
}

// DecodeFromString converts a hex string with 0X prefix to a byte slice. It
// returns an error when the prefix or the hex digits are malformed.
func DecodeFromString(hexString string) ([]byte, error) {
	if len(hexString) < 2 || (hexString[:2] != "0X" && hexString[:2] != "0x") {
		return nil, fmt.Errorf("invalid hex string %q", hexString)
	}
	return hex.DecodeString(hexString[2:])
}
