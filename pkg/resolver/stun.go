package resolver

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/komomoko/komochat/pkg/peer"
)

// Minimal STUN binding codec (RFC 5389 subset). The discovery protocol only
// ever sends an empty binding request and reads the XOR-MAPPED-ADDRESS that
// well-behaved servers place first in the response, at a fixed offset.
const (
	magicCookie    = 0x2112A442
	bindingRequest = 0x0001
	bindingSuccess = 0x0101

	headerSize        = 20
	transactionIDSize = 12

	// XOR-MAPPED-ADDRESS field offsets within the response.
	addrOffset = 20
	portOffset = 26

	minResponseSize = portOffset + 2
)

// buildBindingRequest assembles a 20-byte binding request: 2-byte type,
// 2-byte zero length, 4-byte magic cookie, 12 random transaction-id bytes.
func buildBindingRequest() ([]byte, error) {
	msg := make([]byte, headerSize)
	binary.BigEndian.PutUint16(msg[0:2], bindingRequest)
	binary.BigEndian.PutUint16(msg[2:4], 0)
	binary.BigEndian.PutUint32(msg[4:8], magicCookie)
	if _, err := rand.Read(msg[8:headerSize]); err != nil {
		return nil, fmt.Errorf("generate transaction id: %w", err)
	}
	return msg, nil
}

// parseBindingResponse extracts the public endpoint from a binding success
// response. The IPv4 address sits XOR-obfuscated at bytes 20-23 and the port
// at bytes 26-27, both decoded against the magic cookie.
func parseBindingResponse(resp []byte) (peer.Endpoint, error) {
	if len(resp) < minResponseSize {
		return peer.Endpoint{}, fmt.Errorf("response too short: %d bytes", len(resp))
	}

	if msgType := binary.BigEndian.Uint16(resp[0:2]); msgType != bindingSuccess {
		return peer.Endpoint{}, fmt.Errorf("unexpected message type 0x%04x", msgType)
	}

	xorAddr := binary.BigEndian.Uint32(resp[addrOffset : addrOffset+4])
	addr := xorAddr ^ magicCookie

	xorPort := binary.BigEndian.Uint16(resp[portOffset : portOffset+2])
	port := int(xorPort ^ uint16(magicCookie>>16))

	ip := fmt.Sprintf("%d.%d.%d.%d",
		byte(addr>>24),
		byte(addr>>16),
		byte(addr>>8),
		byte(addr))

	return peer.NewEndpoint(ip, port)
}
