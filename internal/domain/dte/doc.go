// Package dte contains the electronic tax document (DTE) issuance domain:
// CAF folio-authorization blocks, document aggregates with their lifecycle
// state machine, pre-allocation validation, stamp (TED) generation, canonical
// assembly, and the contracts for signing and tax-authority submission.
package dte
