package chain

// AuthoritySignature is the signature of one committee member over a header id.
type AuthoritySignature struct {
	Signer    AuthorityIndex
	Signature []byte
}

// UnverifiedJustification is a finality proof as received from the network.
// It must go through a verifier before it can be used for anything.
type UnverifiedJustification struct {
	Header     Header
	Signatures []AuthoritySignature
}

// ID returns the id of the justified block.
func (u UnverifiedJustification) ID() BlockID {
	return u.Header.ID()
}

// Justification is a finality proof which has been verified, or which was
// read from our own storage. The fields are unexported so that the only way
// to obtain one from untrusted data is through a verifier.
type Justification struct {
	header     Header
	signatures []AuthoritySignature
}

// NewJustification marks the given unverified justification as trusted.
// Only verifiers and storage should call it.
func NewJustification(unverified UnverifiedJustification) Justification {
	return Justification{
		header:     unverified.Header,
		signatures: unverified.Signatures,
	}
}

// Header returns the justified header.
func (j Justification) Header() Header {
	return j.header
}

// ID returns the id of the justified block.
func (j Justification) ID() BlockID {
	return j.header.ID()
}

// Signatures returns the committee signatures of the justification.
func (j Justification) Signatures() []AuthoritySignature {
	return j.signatures
}

// IntoUnverified returns the wire form of the justification.
func (j Justification) IntoUnverified() UnverifiedJustification {
	return UnverifiedJustification{
		Header:     j.header,
		Signatures: j.signatures,
	}
}
