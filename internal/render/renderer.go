// Package render is the artifact renderer collaborator: it turns a
// persisted ticket into an encrypted QR payload and a scannable PNG on
// disk. Rendering failures are never fatal to issuance; tickets without
// artifacts are re-rendered out-of-band.
package render

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"

	qrcode "github.com/skip2/go-qrcode"

	"gatekeeper/internal/models"
)

type Renderer struct {
	secret []byte
	outDir string
}

// Artifact is what the gate consumes: the encrypted payload embedded in
// the QR image, and a reference to the rendered document.
type Artifact struct {
	QRPayload   string
	DocumentRef string
}

// Claims is the decrypted content of a QR payload.
type Claims struct {
	TicketID string `json:"ticket_id"`
	OrderID  string `json:"order_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

func NewRenderer(secret, outDir string) *Renderer {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Renderer{secret: hashed[:], outDir: outDir}
}

func (r *Renderer) Render(ticket models.Ticket) (*Artifact, error) {
	data, err := json.Marshal(Claims{
		TicketID: ticket.ID,
		OrderID:  ticket.OrderID,
		Name:     ticket.Name,
		Category: ticket.Category,
	})
	if err != nil {
		return nil, err
	}

	payload, err := encryptAES(data, r.secret)
	if err != nil {
		return nil, err
	}

	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(r.outDir, 0755); err != nil {
		return nil, err
	}
	ref := filepath.Join(r.outDir, ticket.ID+".png")
	if err := os.WriteFile(ref, png, 0644); err != nil {
		return nil, err
	}

	return &Artifact{QRPayload: payload, DocumentRef: ref}, nil
}

// DecodePayload reverses Render's encryption, for gate devices that
// scan the QR image instead of typing the ticket id.
func (r *Renderer) DecodePayload(payload string) (*Claims, error) {
	data, err := decryptAES(payload, r.secret)
	if err != nil {
		return nil, err
	}
	var claims Claims
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

func decryptAES(payload string, key []byte) ([]byte, error) {
	raw, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		return nil, err
	}
	if len(raw) < aes.BlockSize {
		return nil, errors.New("payload too short")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv := raw[:aes.BlockSize]
	data := make([]byte, len(raw)-aes.BlockSize)
	stream := cipher.NewCFBDecrypter(block, iv)
	stream.XORKeyStream(data, raw[aes.BlockSize:])

	return data, nil
}
