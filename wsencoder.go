package beauty

import "crypto/rand"

// Rng generates the 32-bit mask keys WsEncoder needs when it encodes frames
// in the CLIENT role. It is injectable so embedded targets can swap in a
// hardware RNG, and so tests can be deterministic.
type Rng interface {
	GenerateRandom() uint32
}

// CryptoRandom is the default Rng, backed by crypto/rand.
type CryptoRandom struct{}

// GenerateRandom returns a cryptographically random 32-bit value.
func (CryptoRandom) GenerateRandom() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// FastRandom is a xorshift32 PRNG: not cryptographically secure, but far
// cheaper than CryptoRandom, for constrained targets that want mask keys
// without paying for a CSPRNG.
type FastRandom struct {
	state uint32
}

// NewFastRandom returns a FastRandom seeded with seed (0x12345678 if seed is
// itself 0, since the xorshift algorithm cannot recover from a zero state).
func NewFastRandom(seed uint32) *FastRandom {
	if seed == 0 {
		seed = 0x12345678
	}
	return &FastRandom{state: seed}
}

// GenerateRandom advances and returns the xorshift32 state.
func (r *FastRandom) GenerateRandom() uint32 {
	r.state ^= r.state << 13
	r.state ^= r.state >> 17
	r.state ^= r.state << 5
	return r.state
}

// WsRole selects whether WsEncoder produces server frames (unmasked) or
// client frames (masked, per RFC 6455 §5.1).
type WsRole int

const (
	WsRoleServer WsRole = iota
	WsRoleClient
)

// WsEncoder builds WebSocket frames into a caller-owned buffer (the
// connection's send buffer). A SERVER-role encoder never masks; a
// CLIENT-role encoder always masks and needs an Rng.
type WsEncoder struct {
	role WsRole
	rng  Rng
}

// NewServerWsEncoder returns an encoder that never masks outgoing frames.
func NewServerWsEncoder() *WsEncoder {
	return &WsEncoder{role: WsRoleServer}
}

// NewClientWsEncoder returns an encoder that always masks outgoing frames
// using rng (falling back to CryptoRandom if rng is nil).
func NewClientWsEncoder(rng Rng) *WsEncoder {
	if rng == nil {
		rng = CryptoRandom{}
	}
	return &WsEncoder{role: WsRoleClient, rng: rng}
}

// EncodeTextFrame encodes a text data frame.
func (e *WsEncoder) EncodeTextFrame(buf *[]byte, text string, final bool) {
	e.encodeFrame(buf, WsOpText, []byte(text), final)
}

// EncodeBinaryFrame encodes a binary data frame.
func (e *WsEncoder) EncodeBinaryFrame(buf *[]byte, data []byte, final bool) {
	e.encodeFrame(buf, WsOpBinary, data, final)
}

// EncodePingFrame encodes a ping control frame.
func (e *WsEncoder) EncodePingFrame(buf *[]byte, payload []byte) {
	e.encodeFrame(buf, WsOpPing, payload, true)
}

// EncodePongFrame encodes a pong control frame.
func (e *WsEncoder) EncodePongFrame(buf *[]byte, payload []byte) {
	e.encodeFrame(buf, WsOpPong, payload, true)
}

// EncodeCloseFrame encodes a close control frame: a 2-byte big-endian status
// code followed by an optional UTF-8 reason.
func (e *WsEncoder) EncodeCloseFrame(buf *[]byte, statusCode uint16, reason string) {
	payload := make([]byte, 2, 2+len(reason))
	payload[0] = byte(statusCode >> 8)
	payload[1] = byte(statusCode)
	payload = append(payload, reason...)
	e.encodeFrame(buf, WsOpClose, payload, true)
}

// EncodeCloseFramePayload encodes a close control frame whose payload
// (status code plus reason, already concatenated) was built elsewhere, e.g.
// when echoing the peer's own close payload back unchanged.
func (e *WsEncoder) EncodeCloseFramePayload(buf *[]byte, payload []byte) {
	e.encodeFrame(buf, WsOpClose, payload, true)
}

func (e *WsEncoder) encodeFrame(buf *[]byte, opcode WsOpcode, payload []byte, final bool) {
	mask := e.role == WsRoleClient

	out := (*buf)[:0]

	firstByte := byte(opcode)
	if final {
		firstByte |= 0x80
	}
	out = append(out, firstByte)

	var secondByte byte
	if mask {
		secondByte |= 0x80
	}

	length := uint64(len(payload))
	switch {
	case length < 126:
		out = append(out, secondByte|byte(length))
	case length < 65536:
		out = append(out, secondByte|126)
		out = appendPayloadLength(out, length)
	default:
		out = append(out, secondByte|127)
		out = appendPayloadLength(out, length)
	}

	var maskKey [4]byte
	if mask {
		v := e.rng.GenerateRandom()
		maskKey = [4]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
		out = append(out, maskKey[:]...)
	}

	start := len(out)
	out = append(out, payload...)
	if mask && len(payload) > 0 {
		applyMask(out[start:], maskKey)
	}

	*buf = out
}

func appendPayloadLength(out []byte, length uint64) []byte {
	if length < 65536 {
		return append(out, byte(length>>8), byte(length))
	}
	for i := 7; i >= 0; i-- {
		out = append(out, byte(length>>(uint(i)*8)))
	}
	return out
}

func applyMask(payload []byte, mask [4]byte) {
	for i := range payload {
		payload[i] ^= mask[i%4]
	}
}
