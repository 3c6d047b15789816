package containerbuilder

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

const (
	canonicalizationMethod = "http://www.w3.org/2006/12/xml-c14n11"
	digestMethodSHA256     = "http://www.w3.org/2001/04/xmlenc#sha256"
	signedPropertiesType   = "http://uri.etsi.org/01903#SignedProperties"

	// Fixed signature policy for ballot containers (BDOC 2.1).
	signaturePolicyID     = "urn:oid:1.3.6.1.4.1.10015.1000.3.2.1"
	signaturePolicyDigest = "3Tl1oILSvOAWomdI9VeWV6IA/32eSXRUri9kPEz1IVs="

	// SignatureMethodRSA and SignatureMethodECDSA are the supported signature
	// algorithm identifiers; the identity method's native scheme picks one.
	SignatureMethodRSA   = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	SignatureMethodECDSA = "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha256"
)

// renderSignedProperties produces the XAdES SignedProperties block. Its bytes
// are digested exactly as embedded, so rendering must stay deterministic.
func renderSignedProperties(signatureID string, cert *x509.Certificate, signingTime time.Time) string {
	certDigest := sha256.Sum256(cert.Raw)
	var b strings.Builder
	fmt.Fprintf(&b, `<xades:SignedProperties xmlns:xades="http://uri.etsi.org/01903/v1.3.2#" Id="%s-SignedProperties">`, signatureID)
	b.WriteString("<xades:SignedSignatureProperties>")
	fmt.Fprintf(&b, "<xades:SigningTime>%s</xades:SigningTime>", signingTime.UTC().Format(time.RFC3339))
	b.WriteString("<xades:SigningCertificate><xades:Cert><xades:CertDigest>")
	fmt.Fprintf(&b, `<ds:DigestMethod xmlns:ds="http://www.w3.org/2000/09/xmldsig#" Algorithm="%s"></ds:DigestMethod>`, digestMethodSHA256)
	fmt.Fprintf(&b, `<ds:DigestValue xmlns:ds="http://www.w3.org/2000/09/xmldsig#">%s</ds:DigestValue>`, base64.StdEncoding.EncodeToString(certDigest[:]))
	b.WriteString("</xades:CertDigest><xades:IssuerSerial>")
	fmt.Fprintf(&b, `<ds:X509IssuerName xmlns:ds="http://www.w3.org/2000/09/xmldsig#">%s</ds:X509IssuerName>`, xmlEscape(cert.Issuer.String()))
	fmt.Fprintf(&b, `<ds:X509SerialNumber xmlns:ds="http://www.w3.org/2000/09/xmldsig#">%s</ds:X509SerialNumber>`, cert.SerialNumber.String())
	b.WriteString("</xades:IssuerSerial></xades:Cert></xades:SigningCertificate>")
	b.WriteString("<xades:SignaturePolicyIdentifier><xades:SignaturePolicyId><xades:SigPolicyId>")
	fmt.Fprintf(&b, "<xades:Identifier Qualifier=\"OIDAsURN\">%s</xades:Identifier>", signaturePolicyID)
	b.WriteString("</xades:SigPolicyId><xades:SigPolicyHash>")
	fmt.Fprintf(&b, `<ds:DigestMethod xmlns:ds="http://www.w3.org/2000/09/xmldsig#" Algorithm="%s"></ds:DigestMethod>`, digestMethodSHA256)
	fmt.Fprintf(&b, `<ds:DigestValue xmlns:ds="http://www.w3.org/2000/09/xmldsig#">%s</ds:DigestValue>`, signaturePolicyDigest)
	b.WriteString("</xades:SigPolicyHash></xades:SignaturePolicyId></xades:SignaturePolicyIdentifier>")
	b.WriteString("</xades:SignedSignatureProperties>")
	b.WriteString("</xades:SignedProperties>")
	return b.String()
}

// renderSignedInfo lists one SHA-256 reference per data entry plus the
// reference over the SignedProperties block itself.
func renderSignedInfo(signatureID string, signatureMethod string, documents []Document, signedProps string) string {
	var b strings.Builder
	b.WriteString(`<ds:SignedInfo xmlns:ds="http://www.w3.org/2000/09/xmldsig#">`)
	fmt.Fprintf(&b, `<ds:CanonicalizationMethod Algorithm="%s"></ds:CanonicalizationMethod>`, canonicalizationMethod)
	fmt.Fprintf(&b, `<ds:SignatureMethod Algorithm="%s"></ds:SignatureMethod>`, signatureMethod)
	for i, document := range documents {
		digest := sha256.Sum256(document.Content)
		fmt.Fprintf(&b, `<ds:Reference Id="%s-ref-%d" URI="%s">`, signatureID, i, xmlEscape(document.Name))
		fmt.Fprintf(&b, `<ds:DigestMethod Algorithm="%s"></ds:DigestMethod>`, digestMethodSHA256)
		fmt.Fprintf(&b, "<ds:DigestValue>%s</ds:DigestValue>", base64.StdEncoding.EncodeToString(digest[:]))
		b.WriteString("</ds:Reference>")
	}
	propsDigest := sha256.Sum256([]byte(signedProps))
	fmt.Fprintf(&b, `<ds:Reference Type="%s" URI="#%s-SignedProperties">`, signedPropertiesType, signatureID)
	fmt.Fprintf(&b, `<ds:DigestMethod Algorithm="%s"></ds:DigestMethod>`, digestMethodSHA256)
	fmt.Fprintf(&b, "<ds:DigestValue>%s</ds:DigestValue>", base64.StdEncoding.EncodeToString(propsDigest[:]))
	b.WriteString("</ds:Reference>")
	b.WriteString("</ds:SignedInfo>")
	return b.String()
}

// renderSignatureDocument assembles the final signatures document with the
// signature value, the signer certificate and the embedded OCSP response.
func renderSignatureDocument(
	signatureID string,
	signedInfo string,
	signedProps string,
	certDER []byte,
	signatureValue []byte,
	ocspDER []byte,
) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<asic:XAdESSignatures xmlns:asic="http://uri.etsi.org/02918/v1.2.1#">`)
	fmt.Fprintf(&b, `<ds:Signature xmlns:ds="http://www.w3.org/2000/09/xmldsig#" Id="%s">`, signatureID)
	b.WriteString(signedInfo)
	fmt.Fprintf(&b, `<ds:SignatureValue Id="%s-SIG">%s</ds:SignatureValue>`, signatureID, base64.StdEncoding.EncodeToString(signatureValue))
	b.WriteString("<ds:KeyInfo><ds:X509Data>")
	fmt.Fprintf(&b, "<ds:X509Certificate>%s</ds:X509Certificate>", base64.StdEncoding.EncodeToString(certDER))
	b.WriteString("</ds:X509Data></ds:KeyInfo>")
	fmt.Fprintf(&b, `<ds:Object><xades:QualifyingProperties xmlns:xades="http://uri.etsi.org/01903/v1.3.2#" Target="#%s">`, signatureID)
	b.WriteString(signedProps)
	b.WriteString("<xades:UnsignedProperties><xades:UnsignedSignatureProperties>")
	b.WriteString("<xades:RevocationValues><xades:OCSPValues>")
	fmt.Fprintf(&b, "<xades:EncapsulatedOCSPValue>%s</xades:EncapsulatedOCSPValue>", base64.StdEncoding.EncodeToString(ocspDER))
	b.WriteString("</xades:OCSPValues></xades:RevocationValues>")
	b.WriteString("</xades:UnsignedSignatureProperties></xades:UnsignedProperties>")
	b.WriteString("</xades:QualifyingProperties></ds:Object>")
	b.WriteString("</ds:Signature>")
	b.WriteString("</asic:XAdESSignatures>\n")
	return []byte(b.String())
}

func xmlEscape(value string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(value)); err != nil {
		return value
	}
	return b.String()
}
