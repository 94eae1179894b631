package dte

import (
	"fmt"
	"strings"
	"time"
)

// DocumentAssembler renders the canonical byte representation of a stamped
// document: header, ordered line items, reference (when present) and the
// embedded stamp. The output is deterministic for identical inputs; it is
// the exact payload the signer covers, so any nondeterminism here would
// break signature verification on retry.
type DocumentAssembler struct {
	stamper *StampGenerator
}

// NewDocumentAssembler creates a DocumentAssembler
func NewDocumentAssembler() *DocumentAssembler {
	return &DocumentAssembler{stamper: NewStampGenerator()}
}

// Assemble builds the stamp for the document's folio and renders the full
// canonical representation. stampedAt must be the persisted stamp timestamp.
func (a *DocumentAssembler) Assemble(doc *Document, block *CafBlock, stampedAt time.Time) (payload, stamp []byte, err error) {
	if doc.Folio == nil {
		return nil, nil, &AssemblyError{Stage: "assemble", Err: fmt.Errorf("document %s has no folio", doc.ID)}
	}

	stamp, err = a.stamper.Generate(doc, block, stampedAt)
	if err != nil {
		return nil, nil, &AssemblyError{Stage: "assemble", Err: err}
	}

	payload = a.render(doc, stamp)
	return payload, stamp, nil
}

// Render produces the canonical representation using an already generated
// stamp. Resumed attempts use this path so the persisted stamp is reused
// byte for byte.
func (a *DocumentAssembler) Render(doc *Document, stamp []byte) ([]byte, error) {
	if doc.Folio == nil {
		return nil, &AssemblyError{Stage: "assemble", Err: fmt.Errorf("document %s has no folio", doc.ID)}
	}
	if len(stamp) == 0 {
		return nil, &AssemblyError{Stage: "assemble", Err: fmt.Errorf("document %s has no stamp", doc.ID)}
	}
	return a.render(doc, stamp), nil
}

func (a *DocumentAssembler) render(doc *Document, stamp []byte) []byte {
	var sb strings.Builder

	fmt.Fprintf(&sb, "<DTE version=\"1.0\"><Documento ID=\"T%sF%d\">", doc.DocumentType, *doc.Folio)

	sb.WriteString("<Encabezado>")
	fmt.Fprintf(&sb, "<IdDoc><TipoDTE>%s</TipoDTE><Folio>%d</Folio><FchEmis>%s</FchEmis></IdDoc>",
		doc.DocumentType, *doc.Folio, doc.IssueDate.Format(stampDateFormat))
	fmt.Fprintf(&sb, "<Emisor><RUTEmisor>%s</RUTEmisor></Emisor>", doc.IssuerTaxID)
	if doc.RecipientTaxID != "" {
		fmt.Fprintf(&sb, "<Receptor><RUTRecep>%s</RUTRecep><RznSocRecep>%s</RznSocRecep></Receptor>",
			doc.RecipientTaxID, escapeText(doc.RecipientName))
	}
	fmt.Fprintf(&sb, "<Totales><MntNeto>%s</MntNeto><IVA>%s</IVA><MntExe>%s</MntExe><MntTotal>%s</MntTotal></Totales>",
		doc.NetAmount.StringFixed(0), doc.TaxAmount.StringFixed(0),
		doc.ExemptAmount.StringFixed(0), doc.TotalAmount.StringFixed(0))
	sb.WriteString("</Encabezado>")

	for _, item := range doc.Items {
		fmt.Fprintf(&sb, "<Detalle><NroLinDet>%d</NroLinDet><NmbItem>%s</NmbItem><QtyItem>%s</QtyItem><PrcItem>%s</PrcItem><MontoItem>%s</MontoItem></Detalle>",
			item.LineNumber, escapeText(item.Description), item.Quantity.String(),
			item.UnitPrice.String(), item.Amount.StringFixed(0))
	}

	if doc.Reference != nil {
		fmt.Fprintf(&sb, "<Referencia><TpoDocRef>%s</TpoDocRef><FolioRef>%d</FolioRef><RazonRef>%s</RazonRef></Referencia>",
			doc.Reference.DocumentType, doc.Reference.Folio, escapeText(doc.Reference.Reason))
	}

	sb.Write(stamp)
	sb.WriteString("</Documento></DTE>")

	return []byte(sb.String())
}

// escapeText escapes the characters the canonical format reserves
func escapeText(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return replacer.Replace(s)
}
