package containerbuilder

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"time"
)

// MimeType is the container media type declared by the first archive entry
// and sent as Content-Type on downloads.
const MimeType = "application/vnd.etsi.asic-e+zip"

var (
	ErrNoDocuments      = errors.New("container needs at least one document")
	ErrRevocationProof  = errors.New("revocation proof retrieval failed")
	ErrMissingSigner    = errors.New("signer certificate is required")
	ErrMissingSignature = errors.New("signature value is required")
	ErrInvalidPrepared  = errors.New("prepared container state is invalid")
)

// Document is one data entry of the container.
type Document struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Content   []byte `json:"content"`
}

// OCSPSource fetches the revocation proof for the signer certificate. The
// call is a blocking external request and carries its own timeout via ctx.
type OCSPSource interface {
	Fetch(ctx context.Context, cert *x509.Certificate) ([]byte, error)
}

// Prepared is the to-be-signed state between hash computation and signature
// delivery. It is serializable so in-flight signing sessions can park it
// outside server memory.
type Prepared struct {
	SignatureID     string     `json:"signature_id"`
	SignatureMethod string     `json:"signature_method"`
	SigningTime     time.Time  `json:"signing_time"`
	CertDER         []byte     `json:"cert_der"`
	Documents       []Document `json:"documents"`
	SignedProps     string     `json:"signed_props"`
	SignedInfo      string     `json:"signed_info"`
}

// SignableDigest is the SHA-256 hash the signer commits to.
func (p Prepared) SignableDigest() []byte {
	digest := sha256.Sum256([]byte(p.SignedInfo))
	return digest[:]
}

// Builder assembles per-user and final ballot containers.
type Builder struct {
	OCSP OCSPSource
}

// Prepare computes the digest structures for the given documents and signer
// certificate. The returned state plus the caller-produced signature value
// feed Finalize.
func (b Builder) Prepare(documents []Document, cert *x509.Certificate, signatureMethod string, signingTime time.Time) (Prepared, error) {
	if len(documents) == 0 {
		return Prepared{}, ErrNoDocuments
	}
	if cert == nil {
		return Prepared{}, ErrMissingSigner
	}
	if signatureMethod == "" {
		signatureMethod = SignatureMethodRSA
	}
	signatureID := fmt.Sprintf("S%d", signingTime.UTC().UnixNano())
	signedProps := renderSignedProperties(signatureID, cert, signingTime)
	signedInfo := renderSignedInfo(signatureID, signatureMethod, documents, signedProps)
	return Prepared{
		SignatureID:     signatureID,
		SignatureMethod: signatureMethod,
		SigningTime:     signingTime.UTC(),
		CertDER:         cert.Raw,
		Documents:       documents,
		SignedProps:     signedProps,
		SignedInfo:      signedInfo,
	}, nil
}

// Finalize fetches the revocation proof and assembles the archive. A failed
// OCSP fetch fails the build; a signature without revocation proof is not
// considered complete.
func (b Builder) Finalize(ctx context.Context, prepared Prepared, signatureValue []byte) ([]byte, error) {
	if len(prepared.Documents) == 0 || prepared.SignedInfo == "" {
		return nil, ErrInvalidPrepared
	}
	if len(signatureValue) == 0 {
		return nil, ErrMissingSignature
	}
	cert, err := x509.ParseCertificate(prepared.CertDER)
	if err != nil {
		return nil, fmt.Errorf("parse signer certificate: %w", err)
	}
	if b.OCSP == nil {
		return nil, ErrRevocationProof
	}
	ocspDER, err := b.OCSP.Fetch(ctx, cert)
	if err != nil || len(ocspDER) == 0 {
		if err == nil {
			err = errors.New("empty responder reply")
		}
		return nil, fmt.Errorf("%w: %v", ErrRevocationProof, err)
	}

	signatureDoc := renderSignatureDocument(
		prepared.SignatureID,
		prepared.SignedInfo,
		prepared.SignedProps,
		prepared.CertDER,
		signatureValue,
		ocspDER,
	)
	return assemble(prepared.Documents, signatureDoc)
}

// BuildFinal bundles already-signed per-user containers into the aggregate
// archive for a closed vote. The entries keep their individual signatures;
// the aggregate itself carries the manifest only.
func (b Builder) BuildFinal(userContainers []Document) ([]byte, error) {
	if len(userContainers) == 0 {
		return nil, ErrNoDocuments
	}
	return assemble(userContainers, nil)
}

// assemble writes the archive: mimetype first and stored uncompressed, then
// the manifest, data entries and (when present) the signatures document.
func assemble(documents []Document, signatureDoc []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	mimeEntry, err := w.CreateHeader(&zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	})
	if err != nil {
		return nil, err
	}
	if _, err := mimeEntry.Write([]byte(MimeType)); err != nil {
		return nil, err
	}

	manifestXML, err := renderManifest(documents)
	if err != nil {
		return nil, err
	}
	if err := writeEntry(w, "META-INF/manifest.xml", manifestXML); err != nil {
		return nil, err
	}
	for _, document := range documents {
		if err := writeEntry(w, document.Name, document.Content); err != nil {
			return nil, err
		}
	}
	if signatureDoc != nil {
		if err := writeEntry(w, "META-INF/signatures0.xml", signatureDoc); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeEntry(w *zip.Writer, name string, content []byte) error {
	entry, err := w.Create(name)
	if err != nil {
		return err
	}
	_, err = entry.Write(content)
	return err
}
