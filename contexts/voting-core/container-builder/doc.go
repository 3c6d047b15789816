// Package containerbuilder produces the signed ballot archives inside the
// voting-core context.
//
// The output follows the ASiC-E layout: a stored mimetype entry first, one
// entry per ballot document, a META-INF manifest listing every entry, and an
// XML signature document carrying SHA-256 references, the signer certificate,
// the signature policy identifier and the embedded OCSP response. A missing
// revocation proof fails the build; no archive is produced without it.
package containerbuilder
