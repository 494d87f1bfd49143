package security

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/baharkarakas/securebank/internal/models"
)

// Seal builds the envelope a client sends for instr: a fresh AES key
// wrapped for serverPub, the payload encrypted under it and the whole
// signed with clientKey. instr.ClientID and instr.IdempotencyKey are copied
// to the envelope.
func Seal(instr models.TransferInstruction, clientKey *rsa.PrivateKey, serverPub *rsa.PublicKey, now time.Time, nonce string) (models.SecureEnvelope, error) {
	amount := instr.Amount
	plain, err := json.Marshal(models.TransferPayload{
		FromAccountID: instr.FromAccountID,
		ToAccountID:   instr.ToAccountID,
		Amount:        &amount,
		Description:   instr.Description,
	})
	if err != nil {
		return models.SecureEnvelope{}, err
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return models.SecureEnvelope{}, err
	}
	iv, ciphertext, tag, err := sealGCM(key, plain)
	if err != nil {
		return models.SecureEnvelope{}, fmt.Errorf("encrypt payload: %w", err)
	}
	encKey, err := wrapKey(serverPub, key)
	if err != nil {
		return models.SecureEnvelope{}, fmt.Errorf("wrap key: %w", err)
	}

	ts := strconv.FormatInt(now.UnixMilli(), 10)
	sig, err := sign(clientKey, signingInput(encKey, iv, ciphertext, ts, nonce))
	if err != nil {
		return models.SecureEnvelope{}, fmt.Errorf("sign: %w", err)
	}

	b64 := base64.StdEncoding.EncodeToString
	return models.SecureEnvelope{
		ClientID:       instr.ClientID,
		EncryptedKey:   b64(encKey),
		IV:             b64(iv),
		Tag:            b64(tag),
		Payload:        b64(ciphertext),
		Signature:      b64(sig),
		Timestamp:      models.Timestamp(ts),
		Nonce:          nonce,
		IdempotencyKey: instr.IdempotencyKey,
	}, nil
}
