package containerbuilder

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"io"
	"math/big"
	"strings"
	"testing"
	"time"
)

type staticOCSP struct {
	der []byte
	err error
}

func (s staticOCSP) Fetch(_ context.Context, _ *x509.Certificate) ([]byte, error) {
	return s.der, s.err
}

func testCertificate(t *testing.T) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "TEST,VOTER,39001010000"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return cert
}

func readArchive(t *testing.T, content []byte) map[string][]byte {
	t.Helper()
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	entries := make(map[string][]byte, len(reader.File))
	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", file.Name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", file.Name, err)
		}
		entries[file.Name] = data
	}
	return entries
}

func TestPrepareFinalizeProducesSignedArchive(t *testing.T) {
	cert := testCertificate(t)
	builder := Builder{OCSP: staticOCSP{der: []byte("ocsp-proof")}}

	documents := []Document{{
		Name:      "ballot.txt",
		MediaType: "text/plain",
		Content:   []byte("vote: v-1\nchoices: yes\n"),
	}}
	prepared, err := builder.Prepare(documents, cert, SignatureMethodECDSA, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if len(prepared.SignableDigest()) != 32 {
		t.Fatalf("signable digest must be SHA-256 sized")
	}

	content, err := builder.Finalize(context.Background(), prepared, []byte("signature-value"))
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	entries := readArchive(t, content)
	if string(entries["mimetype"]) != MimeType {
		t.Fatalf("mimetype entry mismatch: %q", entries["mimetype"])
	}
	if _, ok := entries["META-INF/manifest.xml"]; !ok {
		t.Fatalf("manifest entry missing")
	}
	if !bytes.Equal(entries["ballot.txt"], documents[0].Content) {
		t.Fatalf("data entry content mismatch")
	}
	signature := string(entries["META-INF/signatures0.xml"])
	if !strings.Contains(signature, "EncapsulatedOCSPValue") {
		t.Fatalf("signature document missing revocation proof element")
	}
	if !strings.Contains(signature, prepared.SignatureID) {
		t.Fatalf("signature document missing signature id")
	}
}

func TestFinalizeMimetypeFirstAndStored(t *testing.T) {
	cert := testCertificate(t)
	builder := Builder{OCSP: staticOCSP{der: []byte("proof")}}
	prepared, err := builder.Prepare([]Document{{Name: "ballot.txt", MediaType: "text/plain", Content: []byte("x")}}, cert, "", time.Now().UTC())
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	content, err := builder.Finalize(context.Background(), prepared, []byte("sig"))
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(reader.File) == 0 || reader.File[0].Name != "mimetype" {
		t.Fatalf("mimetype must be the first entry")
	}
	if reader.File[0].Method != zip.Store {
		t.Fatalf("mimetype must be stored uncompressed")
	}
}

func TestFinalizeFailsClosedOnRevocationProof(t *testing.T) {
	cert := testCertificate(t)
	prepared, err := Builder{}.Prepare([]Document{{Name: "ballot.txt", Content: []byte("x")}}, cert, "", time.Now().UTC())
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}

	cases := map[string]Builder{
		"responder error": {OCSP: staticOCSP{err: errors.New("responder down")}},
		"empty reply":     {OCSP: staticOCSP{}},
		"no source":       {},
	}
	for name, builder := range cases {
		if _, err := builder.Finalize(context.Background(), prepared, []byte("sig")); !errors.Is(err, ErrRevocationProof) {
			t.Fatalf("%s: expected ErrRevocationProof, got %v", name, err)
		}
	}
}

func TestFinalizeRejectsMissingSignature(t *testing.T) {
	cert := testCertificate(t)
	builder := Builder{OCSP: staticOCSP{der: []byte("proof")}}
	prepared, err := builder.Prepare([]Document{{Name: "ballot.txt", Content: []byte("x")}}, cert, "", time.Now().UTC())
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if _, err := builder.Finalize(context.Background(), prepared, nil); !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}
}

func TestBuildFinalBundlesWithoutSignature(t *testing.T) {
	builder := Builder{}
	content, err := builder.BuildFinal([]Document{
		{Name: "ballot-001-aaa.asice", MediaType: MimeType, Content: []byte("first")},
		{Name: "ballot-002-bbb.asice", MediaType: MimeType, Content: []byte("second")},
	})
	if err != nil {
		t.Fatalf("build final failed: %v", err)
	}
	entries := readArchive(t, content)
	if _, ok := entries["META-INF/signatures0.xml"]; ok {
		t.Fatalf("aggregate archive must not carry its own signature")
	}
	if string(entries["ballot-001-aaa.asice"]) != "first" || string(entries["ballot-002-bbb.asice"]) != "second" {
		t.Fatalf("user containers must be embedded unchanged")
	}
	manifest := string(entries["META-INF/manifest.xml"])
	if !strings.Contains(manifest, "ballot-002-bbb.asice") {
		t.Fatalf("manifest must list every entry")
	}
}

func TestPrepareValidation(t *testing.T) {
	cert := testCertificate(t)
	if _, err := (Builder{}).Prepare(nil, cert, "", time.Now()); !errors.Is(err, ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
	if _, err := (Builder{}).Prepare([]Document{{Name: "a", Content: []byte("x")}}, nil, "", time.Now()); !errors.Is(err, ErrMissingSigner) {
		t.Fatalf("expected ErrMissingSigner, got %v", err)
	}
}
