package transport

import (
	"fmt"

	"github.com/nanospec/nanocore/crypto"
	"github.com/nanospec/nanocore/primitives"
)

// Handshake payload extension bits, packed into a node_id_handshake
// message's Extensions field (spec §4.9 "handshake query/response flags").
const (
	handshakeQueryFlag    uint16 = 1 << 0
	handshakeResponseFlag uint16 = 1 << 1
)

// HandshakeQuery is the initiator's first message: a cookie-sized nonce the
// responder must sign to prove it holds the private key for its advertised
// node id (spec §4.9).
type HandshakeQuery struct {
	Cookie Cookie
}

// Encode packs the query as a handshake payload.
func (q HandshakeQuery) Encode() []byte {
	return append([]byte(nil), q.Cookie[:]...)
}

// HandshakeResponse is the reply: the responder's node id public key and
// its signature over the cookie it was sent (spec §4.9).
type HandshakeResponse struct {
	NodeID    primitives.Account // ed25519 public key reinterpreted as an Account
	Signature primitives.Signature
}

// Encode packs the response as a handshake payload: node id || signature.
func (r HandshakeResponse) Encode() []byte {
	buf := make([]byte, 0, primitives.AccountSize+primitives.SignatureSize)
	buf = append(buf, r.NodeID[:]...)
	buf = append(buf, r.Signature[:]...)
	return buf
}

// DecodeHandshakeResponse parses a handshake response payload.
func DecodeHandshakeResponse(buf []byte) (HandshakeResponse, error) {
	want := primitives.AccountSize + primitives.SignatureSize
	if len(buf) != want {
		return HandshakeResponse{}, fmt.Errorf("transport: bad handshake response length %d, want %d", len(buf), want)
	}
	var r HandshakeResponse
	copy(r.NodeID[:], buf[:primitives.AccountSize])
	copy(r.Signature[:], buf[primitives.AccountSize:])
	return r, nil
}

// DecodeHandshakeQuery parses a handshake query payload.
func DecodeHandshakeQuery(buf []byte) (HandshakeQuery, error) {
	if len(buf) != primitives.AccountSize {
		return HandshakeQuery{}, fmt.Errorf("transport: bad handshake query length %d, want %d", len(buf), primitives.AccountSize)
	}
	var q HandshakeQuery
	copy(q.Cookie[:], buf)
	return q, nil
}

// SignCookie produces the signature a responder sends back to prove
// ownership of nodeKey over cookie (spec §4.9 "the responder signs the
// cookie with its node id key").
func SignCookie(nodeKey crypto.PrivateKey, cookie Cookie) primitives.Signature {
	return crypto.Sign(nodeKey, primitives.BlockHash(cookie))
}

// VerifyCookieSignature checks that resp.Signature is a valid signature by
// resp.NodeID over cookie, completing the three-way handshake
// (query -> response -> this verification) that binds a channel to a
// node id (spec §4.9).
func VerifyCookieSignature(cookie Cookie, resp HandshakeResponse) error {
	pub := crypto.KeyFromAccount(resp.NodeID)
	if err := crypto.Verify(pub, primitives.BlockHash(cookie), resp.Signature); err != nil {
		return fmt.Errorf("transport: handshake signature invalid: %w", err)
	}
	return nil
}

// Handshaker holds both sides of the node-id handshake (spec §4.9): the
// dialing side issues a cookie (IssueQuery), then verifies the peer's
// signature over it and binds the channel's NodeID (Complete); the side
// that receives a query signs its cookie (RespondTo). Grounded on the teacher's accept-then-handle flow in
// network.Node, generalized to the cookie-and-signature exchange the spec
// requires before a channel is usable.
type Handshaker struct {
	cookies *CookieStore
	nodeKey crypto.PrivateKey
	nodeID  primitives.Account
}

// NewHandshaker creates a Handshaker that authenticates peers against
// cookies and proves this node's own identity with nodeKey.
func NewHandshaker(cookies *CookieStore, nodeKey crypto.PrivateKey) *Handshaker {
	return &Handshaker{cookies: cookies, nodeKey: nodeKey, nodeID: nodeKey.Public().Account()}
}

// IssueQuery assigns a cookie for ch's remote endpoint, to be sent as this
// side's handshake query.
func (h *Handshaker) IssueQuery(ch *Channel) (HandshakeQuery, bool) {
	cookie, ok := h.cookies.Assign(ch.Endpoint)
	return HandshakeQuery{Cookie: cookie}, ok
}

// RespondTo signs a peer's query cookie, returning this node's handshake
// response and its own node id.
func (h *Handshaker) RespondTo(q HandshakeQuery) HandshakeResponse {
	return HandshakeResponse{
		NodeID:    h.nodeID,
		Signature: SignCookie(h.nodeKey, q.Cookie),
	}
}

// Complete validates a peer's response against the cookie this node
// issued for ch's endpoint, binding ch.NodeID on success. The cookie is
// single-use: a second call for the same endpoint without a fresh
// IssueQuery fails (spec §4.9 "cookies are single-use").
func (h *Handshaker) Complete(ch *Channel, resp HandshakeResponse) error {
	cookie, ok := h.cookies.Take(ch.Endpoint)
	if !ok {
		return fmt.Errorf("transport: no outstanding cookie for %s", ch.Endpoint)
	}
	if err := VerifyCookieSignature(cookie, resp); err != nil {
		return err
	}
	ch.NodeID = resp.NodeID
	return nil
}
