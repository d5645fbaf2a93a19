// Package security implements the PDF standard security handler as an
// opt-in side channel: RC4 (40/128-bit) and AES-128 encryption for /V 1, 2
// and 4, /R 2-4, keyed by an owner and/or user password. Nothing in the parser or
// writer invokes this package unless a caller explicitly asks to encrypt
// or decrypt a document.
package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"

	"github.com/yingkitw/pdfrs/ir/raw"
)

// padding is the fixed 32-byte password pad from the PDF spec (7.6.3.3).
var padding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

// Permissions mirrors the PDF /P bit flags relevant to this handler.
type Permissions struct {
	Print, Modify, Copy, Annotate bool
}

func (p Permissions) bits() int32 {
	var v int32 = -4 &^ (1<<2 | 1<<3 | 1<<4 | 1<<5) // all reserved bits set per spec; disallow everything, then OR in grants
	if p.Print {
		v |= 1 << 2
	}
	if p.Modify {
		v |= 1 << 3
	}
	if p.Copy {
		v |= 1 << 4
	}
	if p.Annotate {
		v |= 1 << 5
	}
	return v
}

// Algorithm selects the cipher used for string/stream payloads.
type Algorithm int

const (
	RC440 Algorithm = iota
	RC4128
	AES128
)

// Handler carries the derived encryption key and per-document file ID
// needed to encrypt or decrypt individual strings/streams.
type Handler struct {
	Algorithm Algorithm
	KeyLength int // bytes: 5 for RC4-40, 16 for RC4-128/AES-128
	FileKey   []byte
	FileID    []byte
	V, R      int
}

// NewHandler derives the file encryption key from owner/user passwords and
// permissions, following Algorithm 2 of the PDF spec (7.6.3.3), and
// returns a Handler plus the /O and /U entries to store in /Encrypt.
func NewHandler(alg Algorithm, ownerPwd, userPwd string, perm Permissions, fileID []byte) (handler *Handler, oEntry []byte, uEntry []byte, err error) {
	keyLen := 5
	v, r := 1, 2
	switch alg {
	case RC4128:
		keyLen, v, r = 16, 2, 3
	case AES128:
		keyLen, v, r = 16, 4, 4
	}

	ownerPad := padPassword(ownerPwd)
	userPad := padPassword(userPwd)

	o := computeOwnerEntry(ownerPad, userPad, keyLen)
	fileKey := computeFileKey(userPad, o, perm, fileID, keyLen, r)
	u := computeUserEntry(fileKey, fileID, r)

	return &Handler{Algorithm: alg, KeyLength: keyLen, FileKey: fileKey, FileID: fileID, V: v, R: r}, o, u, nil
}

func padPassword(pwd string) []byte {
	b := []byte(pwd)
	if len(b) >= 32 {
		return b[:32]
	}
	out := make([]byte, 32)
	copy(out, b)
	copy(out[len(b):], padding)
	return out
}

func computeOwnerEntry(ownerPad, userPad []byte, keyLen int) []byte {
	h := md5.Sum(ownerPad)
	key := h[:keyLen]
	c, _ := rc4.NewCipher(key)
	out := make([]byte, 32)
	c.XORKeyStream(out, userPad)
	return out
}

func computeFileKey(userPad, ownerEntry []byte, perm Permissions, fileID []byte, keyLen, revision int) []byte {
	h := md5.New()
	h.Write(userPad)
	h.Write(ownerEntry)
	p := perm.bits()
	h.Write([]byte{byte(p), byte(p >> 8), byte(p >> 16), byte(p >> 24)})
	h.Write(fileID)
	sum := h.Sum(nil)
	if revision >= 3 {
		for i := 0; i < 50; i++ {
			sum2 := md5.Sum(sum[:keyLen])
			sum = sum2[:]
		}
	}
	return sum[:keyLen]
}

func computeUserEntry(fileKey, fileID []byte, revision int) []byte {
	if revision == 2 {
		c, _ := rc4.NewCipher(fileKey)
		out := make([]byte, 32)
		c.XORKeyStream(out, padding)
		return out
	}
	h := md5.New()
	h.Write(padding)
	h.Write(fileID)
	sum := h.Sum(nil)
	c, _ := rc4.NewCipher(fileKey)
	out := make([]byte, 16)
	c.XORKeyStream(out, sum)
	for i := 1; i <= 19; i++ {
		round := make([]byte, len(fileKey))
		for j := range fileKey {
			round[j] = fileKey[j] ^ byte(i)
		}
		c, _ := rc4.NewCipher(round)
		c.XORKeyStream(out, out)
	}
	return append(out, make([]byte, 16)...) // pad to 32 bytes as stored in /U
}

// objectKey derives the per-object key used to encrypt a string or stream
// belonging to object (num, gen), per Algorithm 1.
func (h *Handler) objectKey(num, gen int) []byte {
	buf := append([]byte{}, h.FileKey...)
	buf = append(buf, byte(num), byte(num>>8), byte(num>>16), byte(gen), byte(gen>>8))
	if h.Algorithm == AES128 {
		buf = append(buf, 0x73, 0x41, 0x6C, 0x54) // "sAlT" per AES string/stream addendum
	}
	sum := md5.Sum(buf)
	n := h.KeyLength + 5
	if n > 16 {
		n = 16
	}
	return sum[:n]
}

// EncryptBytes encrypts a single string or stream payload belonging to
// object (num, gen) with the handler's configured algorithm.
func (h *Handler) EncryptBytes(num, gen int, plaintext []byte) ([]byte, error) {
	key := h.objectKey(num, gen)
	if h.Algorithm == AES128 {
		return aesEncrypt(key, plaintext)
	}
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(plaintext))
	c.XORKeyStream(out, plaintext)
	return out, nil
}

// DecryptBytes is the inverse of EncryptBytes.
func (h *Handler) DecryptBytes(num, gen int, ciphertext []byte) ([]byte, error) {
	key := h.objectKey(num, gen)
	if h.Algorithm == AES128 {
		return aesDecrypt(key, ciphertext)
	}
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(ciphertext))
	c.XORKeyStream(out, ciphertext)
	return out, nil
}

func aesEncrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	copy(out, iv)
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

func aesDecrypt(key, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < aes.BlockSize {
		return nil, errTooShort
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv := ciphertext[:aes.BlockSize]
	body := ciphertext[aes.BlockSize:]
	out := make([]byte, len(body))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(out, body)
	return pkcs7Unpad(out)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, errBadPadding
	}
	return data[:len(data)-padLen], nil
}

var errTooShort = bytesTooShortError{}
var errBadPadding = badPaddingError{}

type bytesTooShortError struct{}

func (bytesTooShortError) Error() string { return "ciphertext shorter than AES block size" }

type badPaddingError struct{}

func (badPaddingError) Error() string { return "invalid PKCS#7 padding" }

// BuildEncryptDict constructs the /Encrypt dictionary for the trailer.
func BuildEncryptDict(h *Handler, o, u []byte, perm Permissions) *raw.DictObj {
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("Standard"))
	dict.Set(raw.NameLiteral("V"), raw.NumberInt(int64(h.V)))
	dict.Set(raw.NameLiteral("R"), raw.NumberInt(int64(h.R)))
	dict.Set(raw.NameLiteral("O"), raw.HexStr(o))
	dict.Set(raw.NameLiteral("U"), raw.HexStr(u))
	dict.Set(raw.NameLiteral("P"), raw.NumberInt(int64(perm.bits())))
	return dict
}
