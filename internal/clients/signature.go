package clients

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// SignatureHeader carries the processor's HMAC of the callback body.
const SignatureHeader = "x-nowpayments-sig"

// SignIPN computes the HMAC-SHA512 of the payload with its object keys
// sorted, the form the processor signs.
func SignIPN(payload []byte, secret string) (string, error) {
	canonical, err := canonicalJSON(payload)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func VerifyIPNSignature(payload []byte, signature, secret string) (bool, error) {
	expected, err := SignIPN(payload, secret)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))), nil
}

// canonicalJSON re-encodes payload with map keys sorted and numbers kept verbatim.
func canonicalJSON(payload []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
