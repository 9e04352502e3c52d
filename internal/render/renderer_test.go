package render_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/models"
	"gatekeeper/internal/render"
)

func TestRenderAndDecodePayload(t *testing.T) {
	outDir := t.TempDir()
	r := render.NewRenderer("test-secret-key", outDir)

	ticket := models.Ticket{
		ID:       "TKT-1700000000000-ABC123XYZ",
		OrderID:  "ORDER-11111111-2222-3333-4444-555555555555",
		Name:     "Awa Diallo",
		Category: "vip",
	}

	artifact, err := r.Render(ticket)
	require.NoError(t, err)
	assert.NotEmpty(t, artifact.QRPayload)

	// The PNG must exist on disk.
	info, err := os.Stat(artifact.DocumentRef)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	// The payload must decrypt back to the ticket's identity.
	claims, err := r.DecodePayload(artifact.QRPayload)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, claims.TicketID)
	assert.Equal(t, ticket.OrderID, claims.OrderID)
	assert.Equal(t, ticket.Name, claims.Name)
	assert.Equal(t, ticket.Category, claims.Category)
}

func TestDecodePayloadWrongSecret(t *testing.T) {
	outDir := t.TempDir()
	r := render.NewRenderer("secret-one", outDir)

	artifact, err := r.Render(models.Ticket{ID: "TKT-1", OrderID: "ORDER-1", Name: "X", Category: "standard"})
	require.NoError(t, err)

	other := render.NewRenderer("secret-two", outDir)
	_, err = other.DecodePayload(artifact.QRPayload)
	assert.Error(t, err)
}

func TestDecodePayloadGarbage(t *testing.T) {
	r := render.NewRenderer("test-secret-key", t.TempDir())

	_, err := r.DecodePayload("not-base64!!!")
	assert.Error(t, err)

	_, err = r.DecodePayload("c2hvcnQ=")
	assert.Error(t, err)
}
