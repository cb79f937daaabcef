package chia

import (
	"encoding/hex"
	"strings"
)

func HexEncode(bytes []byte) string {
	return hex.EncodeToString(bytes)
}

// HexEncode0x is the form the full node RPC uses for hashes and coin ids.
func HexEncode0x(bytes []byte) string {
	return "0x" + hex.EncodeToString(bytes)
}

// HexDecode accepts hex with or without a 0x prefix.
func HexDecode(str string) ([]byte, error) {
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		str = str[2:]
	}
	return hex.DecodeString(str)
}

func IsValidHex(hex string) bool {
	_, err := HexDecode(hex)
	return err == nil
}
