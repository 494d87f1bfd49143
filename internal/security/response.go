package security

import (
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/scrypt"
)

// SealedBody is the encrypted form of a response body.
type SealedBody struct {
	IV      string `json:"iv"`
	Tag     string `json:"tag"`
	Payload string `json:"payload"`
}

// ResponseSealer encrypts response bodies with a key derived from the
// service's data encryption secret.
type ResponseSealer struct {
	key []byte
}

func NewResponseSealer(secret string) (*ResponseSealer, error) {
	if secret == "" {
		return nil, errors.New("data encryption key is empty")
	}
	key, err := scrypt.Key([]byte(secret), []byte("salt"), 1<<14, 8, 1, keySize)
	if err != nil {
		return nil, err
	}
	return &ResponseSealer{key: key}, nil
}

func (s *ResponseSealer) Seal(body []byte) (SealedBody, error) {
	iv, ciphertext, tag, err := sealGCM(s.key, body)
	if err != nil {
		return SealedBody{}, err
	}
	b64 := base64.StdEncoding.EncodeToString
	return SealedBody{IV: b64(iv), Tag: b64(tag), Payload: b64(ciphertext)}, nil
}

func (s *ResponseSealer) Open(b SealedBody) ([]byte, error) {
	iv, err := base64.StdEncoding.DecodeString(b.IV)
	if err != nil {
		return nil, err
	}
	tag, err := base64.StdEncoding.DecodeString(b.Tag)
	if err != nil {
		return nil, err
	}
	ciphertext, err := base64.StdEncoding.DecodeString(b.Payload)
	if err != nil {
		return nil, err
	}
	return openGCM(s.key, iv, ciphertext, tag)
}
