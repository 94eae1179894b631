package dte

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testKeyPEM holds a generated RSA key pair shared across the package tests;
// generating one per test would dominate the suite's runtime.
var testKeyPEM = func() (private, public string) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	private = string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
	public = string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PUBLIC KEY",
		Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey),
	}))
	return private, public
}

var testPrivateKeyPEM, testPublicKeyPEM = testKeyPEM()

func testAuthorization() CafAuthorization {
	return CafAuthorization{
		IssuerTaxID:    "76543210-3",
		AuthorizedAt:   time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		PublicKeyPEM:   testPublicKeyPEM,
		PrivateKeyPEM:  testPrivateKeyPEM,
		SignatureValue: "c2lnbmF0dXJl",
	}
}

func newTestBlock(t *testing.T, start, end int64) *CafBlock {
	t.Helper()
	block, err := NewCafBlock(
		uuid.New(),
		DocumentTypeInvoice,
		start, end,
		time.Now().AddDate(0, 6, 0),
		testAuthorization(),
	)
	require.NoError(t, err)
	return block
}

func TestNewCafBlock(t *testing.T) {
	t.Run("creates active block with cursor at range start", func(t *testing.T) {
		block := newTestBlock(t, 100, 150)

		assert.Equal(t, int64(100), block.Cursor)
		assert.True(t, block.Active)
		assert.False(t, block.Exhausted)
		assert.Equal(t, int64(51), block.Remaining())

		events := block.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeCafBlockImported, events[0].EventType())
	})

	t.Run("rejects empty tenant", func(t *testing.T) {
		_, err := NewCafBlock(uuid.Nil, DocumentTypeInvoice, 1, 10, time.Now().AddDate(0, 6, 0), testAuthorization())
		assert.Error(t, err)
	})

	t.Run("rejects inverted range", func(t *testing.T) {
		_, err := NewCafBlock(uuid.New(), DocumentTypeInvoice, 10, 5, time.Now().AddDate(0, 6, 0), testAuthorization())
		assert.Error(t, err)
	})

	t.Run("rejects unsupported document type", func(t *testing.T) {
		_, err := NewCafBlock(uuid.New(), DocumentType("99"), 1, 10, time.Now().AddDate(0, 6, 0), testAuthorization())
		assert.Error(t, err)
	})

	t.Run("rejects missing key material", func(t *testing.T) {
		auth := testAuthorization()
		auth.PrivateKeyPEM = ""
		_, err := NewCafBlock(uuid.New(), DocumentTypeInvoice, 1, 10, time.Now().AddDate(0, 6, 0), auth)
		assert.Error(t, err)
	})
}

func TestCafBlock_ClaimNext(t *testing.T) {
	t.Run("hands out folios in strictly increasing order", func(t *testing.T) {
		block := newTestBlock(t, 1, 3)
		now := time.Now()

		for want := int64(1); want <= 3; want++ {
			folio, err := block.ClaimNext(now)
			require.NoError(t, err)
			assert.Equal(t, want, folio)
		}

		assert.True(t, block.Exhausted)
		assert.Equal(t, int64(0), block.Remaining())
	})

	t.Run("exhausted block refuses further claims", func(t *testing.T) {
		block := newTestBlock(t, 1, 1)
		_, err := block.ClaimNext(time.Now())
		require.NoError(t, err)

		_, err = block.ClaimNext(time.Now())
		assert.ErrorIs(t, err, ErrFolioExhausted)
	})

	t.Run("exhaustion raises a domain event", func(t *testing.T) {
		block := newTestBlock(t, 5, 5)
		block.ClearDomainEvents()

		_, err := block.ClaimNext(time.Now())
		require.NoError(t, err)

		events := block.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeCafBlockExhausted, events[0].EventType())
	})

	t.Run("expired block refuses claims", func(t *testing.T) {
		block := newTestBlock(t, 1, 10)
		_, err := block.ClaimNext(block.ExpiresAt.Add(time.Hour))
		assert.ErrorIs(t, err, ErrBlockExpired)
		assert.Equal(t, int64(1), block.Cursor)
	})

	t.Run("inactive block refuses claims", func(t *testing.T) {
		block := newTestBlock(t, 1, 10)
		require.NoError(t, block.Deactivate("superseded"))

		_, err := block.ClaimNext(time.Now())
		assert.ErrorIs(t, err, ErrNoActiveBlock)
	})

	t.Run("claim bumps the aggregate version", func(t *testing.T) {
		block := newTestBlock(t, 1, 10)
		before := block.Version

		_, err := block.ClaimNext(time.Now())
		require.NoError(t, err)
		assert.Equal(t, before+1, block.Version)
	})
}

func TestCafBlock_Ranges(t *testing.T) {
	block := newTestBlock(t, 100, 200)

	t.Run("contains in-range folios only", func(t *testing.T) {
		assert.True(t, block.Contains(100))
		assert.True(t, block.Contains(200))
		assert.False(t, block.Contains(99))
		assert.False(t, block.Contains(201))
	})

	t.Run("detects overlapping ranges", func(t *testing.T) {
		assert.True(t, block.Overlaps(150, 250))
		assert.True(t, block.Overlaps(50, 100))
		assert.True(t, block.Overlaps(120, 130))
		assert.False(t, block.Overlaps(201, 300))
		assert.False(t, block.Overlaps(1, 99))
	})
}

func TestCafBlock_Deactivate(t *testing.T) {
	t.Run("retires active block", func(t *testing.T) {
		block := newTestBlock(t, 1, 10)
		require.NoError(t, block.Deactivate("superseded by new import"))
		assert.False(t, block.Active)
		assert.False(t, block.Eligible(time.Now()))
	})

	t.Run("rejects double deactivation", func(t *testing.T) {
		block := newTestBlock(t, 1, 10)
		require.NoError(t, block.Deactivate("first"))
		assert.Error(t, block.Deactivate("second"))
	})
}
