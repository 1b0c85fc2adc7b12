// Package checksum computes the digests used as optimistic-concurrency tokens.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/starford/contactflow/internal/models"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Contact returns the digest of c's editable fields and update time.
// Any successful write changes it.
func Contact(c *models.Contact) string {
	data, _ := json.Marshal(struct {
		Name      string   `json:"name"`
		Email     string   `json:"email"`
		Company   string   `json:"company"`
		Status    string   `json:"status"`
		Source    string   `json:"source"`
		Tags      []string `json:"tags"`
		Notes     string   `json:"notes"`
		UpdatedAt int64    `json:"updated_at"`
	}{c.Name, c.Email, c.Company, string(c.Status), c.Source, c.Tags, c.Notes, c.UpdatedAt.UnixNano()})
	return Sum(data)
}
