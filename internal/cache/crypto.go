package cache

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// encChunkSize is the plaintext chunk size for at-rest encryption.
	encChunkSize = 16 * 1024 * 1024

	// encHeaderSize is the chunk header: 4-byte ciphertext size + nonce.
	encHeaderSize = 4 + chacha20poly1305.NonceSize
)

var (
	// errInvalidChunk indicates a truncated or tampered cache file.
	errInvalidChunk = errors.New("invalid or corrupted cache chunk")

	// errDecryptFailed indicates AEAD authentication failed.
	errDecryptFailed = errors.New("cache decryption failed: authentication error")
)

// Encryptor provides at-rest AEAD for filesystem cache entries using
// ChaCha20-Poly1305 in chunked form: [size:4][nonce:12][ciphertext+tag]
// per chunk. The per-entry key is derived from the master key with HKDF,
// salted by the entry's content hash, so the master key never touches
// disk and entries cannot be swapped between hashes.
type Encryptor struct {
	masterKey []byte
}

// NewEncryptor derives a 256-bit master key from an opaque secret.
func NewEncryptor(secret string) *Encryptor {
	key := sha256.Sum256([]byte(secret))
	return &Encryptor{masterKey: key[:]}
}

// deriveKey derives the per-entry key, salted by the entry content hash.
func (e *Encryptor) deriveKey(salt []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, e.masterKey, salt, []byte("deltaglider-ref-cache"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive cache key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext into the chunked AEAD format.
func (e *Encryptor) Encrypt(plaintext, salt []byte) ([]byte, error) {
	key, err := e.deriveKey(salt)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AEAD: %w", err)
	}

	baseNonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(baseNonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	var out []byte
	var chunkNum uint64
	for offset := 0; offset < len(plaintext) || (len(plaintext) == 0 && chunkNum == 0); offset += encChunkSize {
		end := offset + encChunkSize
		if end > len(plaintext) {
			end = len(plaintext)
		}
		nonce := deriveNonce(baseNonce, chunkNum)
		chunkNum++

		ciphertext := aead.Seal(nil, nonce, plaintext[offset:end], nil)

		header := make([]byte, 4)
		binary.BigEndian.PutUint32(header, uint32(len(ciphertext)))
		out = append(out, header...)
		out = append(out, nonce...)
		out = append(out, ciphertext...)
	}
	return out, nil
}

// Decrypt opens a blob produced by Encrypt.
func (e *Encryptor) Decrypt(ciphertext, salt []byte) ([]byte, error) {
	key, err := e.deriveKey(salt)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AEAD: %w", err)
	}

	var out []byte
	offset := 0
	for offset < len(ciphertext) {
		if offset+encHeaderSize > len(ciphertext) {
			return nil, errInvalidChunk
		}
		size := binary.BigEndian.Uint32(ciphertext[offset : offset+4])
		nonce := ciphertext[offset+4 : offset+encHeaderSize]
		offset += encHeaderSize

		if offset+int(size) > len(ciphertext) {
			return nil, errInvalidChunk
		}
		chunk := ciphertext[offset : offset+int(size)]
		offset += int(size)

		plaintext, err := aead.Open(nil, nonce, chunk, nil)
		if err != nil {
			return nil, errDecryptFailed
		}
		out = append(out, plaintext...)
	}
	return out, nil
}

// deriveNonce XORs the chunk counter into the base nonce tail so every
// chunk under one key gets a unique nonce.
func deriveNonce(base []byte, chunkNum uint64) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	copy(nonce, base)
	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], chunkNum)
	for i := 0; i < 8; i++ {
		nonce[chacha20poly1305.NonceSize-8+i] ^= counter[i]
	}
	return nonce
}
