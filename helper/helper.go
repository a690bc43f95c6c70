package helper

import (
	"fmt"
	"io"
)

// ClientPrefix opens every peer id this client generates (Azureus style:
// client code AL, version 0100).
const ClientPrefix = "-AL0100-"

const symbols = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ1234567890"

// GeneratePeerID builds the 20-byte identity announced to trackers. The
// characters after ClientPrefix are drawn from r.
func GeneratePeerID(r io.Reader) ([20]byte, error) {
	peerID := [20]byte{}
	copy(peerID[:], ClientPrefix)

	random := make([]byte, len(peerID)-len(ClientPrefix))
	if _, err := io.ReadFull(r, random); err != nil {
		return peerID, fmt.Errorf("failed to generate peer ID: %w", err)
	}
	for i, b := range random {
		peerID[len(ClientPrefix)+i] = symbols[int(b)%len(symbols)]
	}
	return peerID, nil
}

// GenerateRandomID reads size random bytes from r, used for UDP transaction
// ids and announce keys.
func GenerateRandomID(r io.Reader, size int) ([]byte, error) {
	id := make([]byte, size)
	if _, err := io.ReadFull(r, id); err != nil {
		return nil, fmt.Errorf("failed to generate random id: %w", err)
	}
	return id, nil
}
