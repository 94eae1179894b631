// Package signer wraps assembled documents with the tenant's digital
// signature before they travel to the tax authority.
package signer

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/dte/backend/internal/domain/credential"
	"github.com/dte/backend/internal/domain/dte"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RSASigner signs document payloads with the tenant's certificate. A tenant
// without a certificate valid at signing time cannot sign; the caller
// treats that as fatal for the attempt.
type RSASigner struct {
	certs  credential.CertificateRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewRSASigner creates an RSASigner
func NewRSASigner(certs credential.CertificateRepository, logger *zap.Logger) *RSASigner {
	return &RSASigner{
		certs:  certs,
		logger: logger,
		now:    time.Now,
	}
}

// Sign implements dte.Signer
func (s *RSASigner) Sign(ctx context.Context, tenantID uuid.UUID, payload []byte) (dte.SignedDocument, error) {
	now := s.now()

	cert, err := s.certs.FindActiveForTenant(ctx, tenantID, now)
	if err != nil {
		return dte.SignedDocument{}, fmt.Errorf("loading tenant certificate: %w", err)
	}
	if !cert.ValidAt(now) {
		return dte.SignedDocument{}, credential.ErrCertificateExpired
	}

	key, err := parsePrivateKey(cert.PrivateKeyPEM)
	if err != nil {
		return dte.SignedDocument{}, fmt.Errorf("parsing certificate key: %w", err)
	}

	digest := sha1.Sum(payload)
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA1, digest[:])
	if err != nil {
		return dte.SignedDocument{}, fmt.Errorf("signing payload: %w", err)
	}

	s.logger.Debug("payload signed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("certificate_serial", cert.Serial))

	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(signature)))
	base64.StdEncoding.Encode(encoded, signature)

	return dte.SignedDocument{
		Payload:           payload,
		Signature:         encoded,
		CertificateSerial: cert.Serial,
	}, nil
}

// parsePrivateKey reads an RSA private key in PKCS1 or PKCS8 PEM form
func parsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA private key")
	}
	return key, nil
}
