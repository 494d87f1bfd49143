package security

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
)

// ivSize is the GCM nonce length used on the wire. It is not the 12-byte
// default, so every AEAD is built with NewGCMWithNonceSize.
const ivSize = 16

const keySize = 32

// signingInput is the byte string a client signs:
// encKey || iv || ciphertext || timestamp || nonce.
func signingInput(encKey, iv, ciphertext []byte, timestamp, nonce string) []byte {
	msg := make([]byte, 0, len(encKey)+len(iv)+len(ciphertext)+len(timestamp)+len(nonce))
	msg = append(msg, encKey...)
	msg = append(msg, iv...)
	msg = append(msg, ciphertext...)
	msg = append(msg, timestamp...)
	msg = append(msg, nonce...)
	return msg
}

func verifySignature(pub *rsa.PublicKey, msg, sig []byte) error {
	sum := sha256.Sum256(msg)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, sum[:], sig)
}

func sign(priv *rsa.PrivateKey, msg []byte) ([]byte, error) {
	sum := sha256.Sum256(msg)
	return rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, sum[:])
}

func unwrapKey(priv *rsa.PrivateKey, wrapped []byte) ([]byte, error) {
	k, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped, nil)
	if err != nil {
		return nil, err
	}
	if len(k) != keySize {
		return nil, errors.New("unwrapped key has wrong length")
	}
	return k, nil
}

func wrapKey(pub *rsa.PublicKey, key []byte) ([]byte, error) {
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, ivSize)
}

// openGCM decrypts ciphertext with a detached tag.
func openGCM(key, iv, ciphertext, tag []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != ivSize || len(tag) != aead.Overhead() {
		return nil, errors.New("bad iv or tag length")
	}
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	return aead.Open(nil, iv, sealed, nil)
}

// sealGCM encrypts plaintext under a fresh IV and returns the tag detached.
func sealGCM(key, plaintext []byte) (iv, ciphertext, tag []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, nil, err
	}
	iv = make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, nil, err
	}
	out := aead.Seal(nil, iv, plaintext, nil)
	n := len(out) - aead.Overhead()
	return iv, out[:n], out[n:], nil
}
