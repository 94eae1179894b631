package dte

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"
)

// maxStampItemDescription is the fixed truncation length for the first
// line-item description carried inside the stamp.
const maxStampItemDescription = 40

// stampDateFormat is the date layout used inside the canonical stamp
const stampDateFormat = "2006-01-02"

// stampTimestampFormat is the timestamp layout used inside the canonical stamp
const stampTimestampFormat = "2006-01-02T15:04:05"

// StampGenerator builds the electronic stamp (TED) for a document that
// already holds a folio. The stamp is a canonical field-ordered structure
// digested with SHA-1 and signed with the CAF block's private key. Given
// identical inputs the output is byte-identical, which is what makes
// idempotent retry and audit reproduction possible; the only time-derived
// field is the stamp timestamp, which the caller persists on the document
// and replays on retry.
type StampGenerator struct{}

// NewStampGenerator creates a StampGenerator
func NewStampGenerator() *StampGenerator {
	return &StampGenerator{}
}

// Generate returns the stamp bytes for the document and its folio. The
// document must already carry the folio; stampedAt must be the persisted
// stamp timestamp, not a fresh clock reading.
func (g *StampGenerator) Generate(doc *Document, block *CafBlock, stampedAt time.Time) ([]byte, error) {
	if doc.Folio == nil {
		return nil, errors.New("cannot stamp a document without a folio")
	}
	if !block.Contains(*doc.Folio) {
		return nil, fmt.Errorf("folio %d is outside CAF range [%d,%d]", *doc.Folio, block.RangeStart, block.RangeEnd)
	}

	data := g.canonicalData(doc, block, stampedAt)

	signature, err := signStampData(data, block.Authorization.PrivateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("signing stamp data: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("<TED version=\"1.0\">")
	sb.Write(data)
	sb.WriteString("<FRMT algoritmo=\"SHA1withRSA\">")
	sb.WriteString(base64.StdEncoding.EncodeToString(signature))
	sb.WriteString("</FRMT>")
	sb.WriteString("</TED>")

	return []byte(sb.String()), nil
}

// canonicalData renders the field-ordered stamp body. Field order is fixed
// by the external schema; any reordering changes the digest.
func (g *StampGenerator) canonicalData(doc *Document, block *CafBlock, stampedAt time.Time) []byte {
	var sb strings.Builder
	sb.WriteString("<DD>")
	fmt.Fprintf(&sb, "<RE>%s</RE>", doc.IssuerTaxID)
	fmt.Fprintf(&sb, "<TD>%s</TD>", doc.DocumentType)
	fmt.Fprintf(&sb, "<F>%d</F>", *doc.Folio)
	fmt.Fprintf(&sb, "<FE>%s</FE>", doc.IssueDate.Format(stampDateFormat))
	if doc.RecipientTaxID != "" {
		fmt.Fprintf(&sb, "<RR>%s</RR>", doc.RecipientTaxID)
	}
	fmt.Fprintf(&sb, "<MNT>%s</MNT>", doc.TotalAmount.StringFixed(0))
	fmt.Fprintf(&sb, "<IT1>%s</IT1>", truncate(firstItemDescription(doc), maxStampItemDescription))
	sb.WriteString("<CAF>")
	fmt.Fprintf(&sb, "<RNG><D>%d</D><H>%d</H></RNG>", block.RangeStart, block.RangeEnd)
	fmt.Fprintf(&sb, "<FA>%s</FA>", block.Authorization.AuthorizedAt.Format(stampDateFormat))
	fmt.Fprintf(&sb, "<RSAPK>%s</RSAPK>", publicKeyFragment(block.Authorization.PublicKeyPEM))
	sb.WriteString("</CAF>")
	fmt.Fprintf(&sb, "<TSTED>%s</TSTED>", stampedAt.UTC().Format(stampTimestampFormat))
	sb.WriteString("</DD>")
	return []byte(sb.String())
}

// signStampData digests the canonical data with SHA-1 and signs it with the
// CAF private key. PKCS#1 v1.5 signatures are deterministic, so the whole
// stamp stays reproducible.
func signStampData(data []byte, privateKeyPEM string) ([]byte, error) {
	key, err := parseRSAPrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}
	digest := sha1.Sum(data)
	return rsa.SignPKCS1v15(nil, key, crypto.SHA1, digest[:])
}

// VerifyStamp checks the stamp signature against the CAF public key. Used
// by audit tooling and tests; issuance itself never verifies its own stamp.
func VerifyStamp(stamp []byte, publicKeyPEM string) error {
	body := string(stamp)
	ddStart := strings.Index(body, "<DD>")
	ddEnd := strings.Index(body, "</DD>")
	if ddStart < 0 || ddEnd < 0 {
		return errors.New("stamp carries no DD section")
	}
	data := body[ddStart : ddEnd+len("</DD>")]

	frmt := strings.Index(body, "<FRMT")
	sigEnd := strings.Index(body, "</FRMT>")
	if frmt < 0 || sigEnd < 0 {
		return errors.New("stamp carries no FRMT section")
	}
	rel := strings.Index(body[frmt:], "\">")
	if rel < 0 {
		return errors.New("stamp carries no FRMT section")
	}
	sigStart := frmt + rel
	signature, err := base64.StdEncoding.DecodeString(body[sigStart+2 : sigEnd])
	if err != nil {
		return fmt.Errorf("decoding stamp signature: %w", err)
	}

	pub, err := parseRSAPublicKey(publicKeyPEM)
	if err != nil {
		return err
	}
	digest := sha1.Sum([]byte(data))
	return rsa.VerifyPKCS1v15(pub, crypto.SHA1, digest[:], signature)
}

func firstItemDescription(doc *Document) string {
	if len(doc.Items) == 0 {
		return ""
	}
	return doc.Items[0].Description
}

// truncate cuts s to at most max runes, never splitting a multi-byte
// character in the middle.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}

// publicKeyFragment returns a stable short fragment of the CAF public key
// for embedding in the stamp, as the schema carries the modulus rather than
// the full PEM envelope.
func publicKeyFragment(publicKeyPEM string) string {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return ""
	}
	encoded := base64.StdEncoding.EncodeToString(block.Bytes)
	return truncate(encoded, 64)
}

func parseRSAPrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("no PEM block found in CAF private key")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing CAF private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("CAF private key is not RSA")
	}
	return key, nil
}

func parseRSAPublicKey(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("no PEM block found in CAF public key")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing CAF public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("CAF public key is not RSA")
	}
	return key, nil
}
