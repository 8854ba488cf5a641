package paymentwebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	pkgerrors "github.com/leadpulse/leadpulse-backend/pkg/errors"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the raw request
// body, keyed with the shared gateway secret.
const SignatureHeader = "X-Gateway-Signature"

// Event is the payment gateway's outcome notification. ReferenceID is the
// invoice id we passed when the charge was created.
type Event struct {
	EventID       string `json:"event_id"`
	ReferenceID   string `json:"reference_id"`
	TransactionID string `json:"transaction_id"`
	Outcome       string `json:"outcome"`
}

// ConstructEvent verifies the payload signature and decodes the event.
// Verification happens before decoding; an unsigned body is never parsed.
func ConstructEvent(payload []byte, signature, secret string) (*Event, error) {
	if secret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook secret not configured")
	}
	if signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "signature missing")
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "signature is not valid hex")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "signature mismatch")
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook payload")
	}
	return &event, nil
}

// Sign computes the signature a well-formed gateway request would carry.
// Used by tests and the local gateway simulator.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
