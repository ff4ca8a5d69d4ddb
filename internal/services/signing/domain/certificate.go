package domain

import (
	"fmt"
	"time"

	"github.com/louisbranch/countersign/internal/platform/id"
)

// CertificateSigner is one signer entry on a certificate of completion.
type CertificateSigner struct {
	Name          string
	Email         string
	Role          string
	Level         int
	Status        SignerStatus
	SignedAt      *time.Time
	SignatureIP   string
	SignatureType string
}

// Certificate is the summary record generated when a request completes:
// who signed what, when, and from where. It is persisted and attached to
// the request; cryptographic sealing is left to an external signature
// provider.
type Certificate struct {
	ID           string
	RequestID    string
	Title        string
	DocumentRefs []string
	Signers      []CertificateSigner
	GeneratedAt  time.Time
}

// NewCertificate builds the certificate of completion for a request.
// Every signer across every level appears, including delegated ones, so
// the certificate reflects the full resolution of the chain.
func NewCertificate(request SigningRequest, now func() time.Time, idGenerator func() (string, error)) (Certificate, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	certificateID, err := idGenerator()
	if err != nil {
		return Certificate{}, fmt.Errorf("generate certificate id: %w", err)
	}

	cert := Certificate{
		ID:           certificateID,
		RequestID:    request.ID,
		Title:        request.Title,
		DocumentRefs: append([]string(nil), request.DocumentRefs...),
		GeneratedAt:  now().UTC(),
	}
	for _, level := range request.Chain.Levels {
		for _, signer := range level.Signers {
			cert.Signers = append(cert.Signers, CertificateSigner{
				Name:          signer.Name,
				Email:         signer.Email,
				Role:          signer.Role,
				Level:         signer.Level,
				Status:        signer.Status,
				SignedAt:      signer.SignedAt,
				SignatureIP:   signer.SignatureIP,
				SignatureType: signer.SignatureType,
			})
		}
	}
	return cert, nil
}
