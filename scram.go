package mq

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// ScramSHA256Authenticator implements Authenticator for SCRAM-SHA-256
// (RFC 5802), the enhanced-authentication method most MQTT v5.0 brokers
// that support Authenticator-based auth expect. Channel binding is not
// supported (gs2-header is always "n,,").
//
// Example:
//
//	client, err := mq.Dial("tcp://broker:1883",
//	    mq.WithAuthenticator(mq.NewScramSHA256Authenticator("alice", "s3cret")),
//	    mq.WithProtocolVersion(mq.ProtocolV50))
type ScramSHA256Authenticator struct {
	username string
	password string

	clientNonce string
	serverNonce string
	authMsg     string
	serverKey   []byte
}

// NewScramSHA256Authenticator returns an Authenticator that performs the
// SCRAM-SHA-256 client-side exchange for the given credentials.
func NewScramSHA256Authenticator(username, password string) *ScramSHA256Authenticator {
	return &ScramSHA256Authenticator{username: username, password: password}
}

func (s *ScramSHA256Authenticator) Method() string {
	return "SCRAM-SHA-256"
}

// InitialData builds the client-first-message: "n,,n=<user>,r=<nonce>".
func (s *ScramSHA256Authenticator) InitialData() ([]byte, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("scram: generating client nonce: %w", err)
	}
	s.clientNonce = base64.RawStdEncoding.EncodeToString(nonce)

	msg := fmt.Sprintf("n,,n=%s,r=%s", s.username, s.clientNonce)
	s.authMsg = msg[3:] // client-first-message-bare, used later in AuthMessage

	return []byte(msg), nil
}

// HandleChallenge consumes the server-first-message and returns the
// client-final-message containing the computed client proof.
func (s *ScramSHA256Authenticator) HandleChallenge(data []byte, reasonCode uint8) ([]byte, error) {
	parts := parseScramMessage(string(data))

	r, ok := parts["r"]
	if !ok || !strings.HasPrefix(r, s.clientNonce) {
		return nil, fmt.Errorf("scram: invalid or missing server nonce")
	}
	s.serverNonce = r

	saltStr, ok := parts["s"]
	if !ok {
		return nil, fmt.Errorf("scram: missing salt")
	}
	salt, err := base64.StdEncoding.DecodeString(saltStr)
	if err != nil {
		return nil, fmt.Errorf("scram: invalid salt: %w", err)
	}

	iterStr, ok := parts["i"]
	if !ok {
		return nil, fmt.Errorf("scram: missing iteration count")
	}
	var iter int
	if _, err := fmt.Sscanf(iterStr, "%d", &iter); err != nil || iter < 1 {
		return nil, fmt.Errorf("scram: invalid iteration count %q", iterStr)
	}

	// AuthMessage = client-first-message-bare + "," + server-first-message + "," + client-final-message-without-proof
	s.authMsg += "," + string(data) + ",c=biws,r=" + s.serverNonce

	saltedPassword := pbkdf2.Key([]byte(s.password), salt, iter, 32, sha256.New)
	clientKey := scramHMAC(saltedPassword, "Client Key")
	storedKey := sha256.Sum256(clientKey)
	clientSignature := scramHMAC(storedKey[:], s.authMsg)

	clientProof := make([]byte, len(clientKey))
	for i := range clientKey {
		clientProof[i] = clientKey[i] ^ clientSignature[i]
	}

	s.serverKey = scramHMAC(saltedPassword, "Server Key")

	finalMsg := fmt.Sprintf("c=biws,r=%s,p=%s", s.serverNonce, base64.StdEncoding.EncodeToString(clientProof))
	return []byte(finalMsg), nil
}

// Complete verifies the server signature carried in the CONNACK's
// authentication data would be checked here if the broker returned it via
// a trailing AUTH packet; brokers that fold it into the success CONNACK
// expect Complete to be a no-op, so there is nothing to verify without
// that data in hand.
func (s *ScramSHA256Authenticator) Complete() error {
	return nil
}

// VerifyServerSignature checks a server-signature value (as sent in a
// final server AUTH message's "v=" attribute) against the expected
// ServerSignature computed from this exchange. Call this from a custom
// Authenticator wrapper or test harness that has access to that value;
// the base Authenticator interface has no hook for it because not all
// brokers send one.
func (s *ScramSHA256Authenticator) VerifyServerSignature(serverSignatureB64 string) error {
	want, err := base64.StdEncoding.DecodeString(serverSignatureB64)
	if err != nil {
		return fmt.Errorf("scram: invalid server signature encoding: %w", err)
	}
	got := scramHMAC(s.serverKey, s.authMsg)
	if !hmac.Equal(want, got) {
		return fmt.Errorf("scram: server signature mismatch")
	}
	return nil
}

func scramHMAC(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

func parseScramMessage(msg string) map[string]string {
	parts := strings.Split(msg, ",")
	m := make(map[string]string, len(parts))
	for _, p := range parts {
		if len(p) > 2 && p[1] == '=' {
			m[p[:1]] = p[2:]
		}
	}
	return m
}
