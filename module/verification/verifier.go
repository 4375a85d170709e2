package verification

import (
	"crypto/ed25519"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/module"
	"github.com/finalitylabs/blocksync/utils/logging"
)

const (
	DefaultVerifiedCacheSize = 1024
	// DefaultEquivocationWindow is the number of (author, slot) pairs remembered
	// for detecting equivocations.
	DefaultEquivocationWindow = 4096
)

type slotKey struct {
	author chain.AuthorityIndex
	slot   uint64
}

// Verifier checks committee signatures of justifications and author seals
// of headers. It remembers recently sealed slots to detect equivocations.
type Verifier struct {
	log       zerolog.Logger
	committee []ed25519.PublicKey
	genesis   chain.BlockID
	own       *chain.AuthorityIndex
	verified  *lru.Cache[chain.BlockID, chain.Justification]
	seen      *lru.Cache[slotKey, chain.Header]
}

var _ module.Verifier = (*Verifier)(nil)

type Option func(*config)

type config struct {
	own                *chain.AuthorityIndex
	verifiedCacheSize  int
	equivocationWindow int
}

// WithOwnAuthority tells the verifier which committee member we are, so an
// equivocation by our own key can be told apart.
func WithOwnAuthority(index chain.AuthorityIndex) Option {
	return func(c *config) {
		c.own = &index
	}
}

func WithVerifiedCacheSize(size int) Option {
	return func(c *config) {
		c.verifiedCacheSize = size
	}
}

func WithEquivocationWindow(size int) Option {
	return func(c *config) {
		c.equivocationWindow = size
	}
}

// NewVerifier creates a verifier for the given committee. The genesis block
// is the only one accepted without signatures.
func NewVerifier(log zerolog.Logger, committee []ed25519.PublicKey, genesis chain.BlockID, opts ...Option) (*Verifier, error) {
	if len(committee) == 0 {
		return nil, fmt.Errorf("committee must not be empty")
	}
	cfg := config{
		verifiedCacheSize:  DefaultVerifiedCacheSize,
		equivocationWindow: DefaultEquivocationWindow,
	}
	for _, apply := range opts {
		apply(&cfg)
	}
	if cfg.own != nil && int(*cfg.own) >= len(committee) {
		return nil, fmt.Errorf("own authority %d outside of committee of size %d", *cfg.own, len(committee))
	}

	verified, err := lru.New[chain.BlockID, chain.Justification](cfg.verifiedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not create verified cache: %w", err)
	}
	seen, err := lru.New[slotKey, chain.Header](cfg.equivocationWindow)
	if err != nil {
		return nil, fmt.Errorf("could not create equivocation window: %w", err)
	}

	return &Verifier{
		log:       log.With().Str("component", "verifier").Logger(),
		committee: committee,
		genesis:   genesis,
		own:       cfg.own,
		verified:  verified,
		seen:      seen,
	}, nil
}

// Quorum returns the number of signatures required for a justification.
func (v *Verifier) Quorum() int {
	return 2*len(v.committee)/3 + 1
}

// VerifyJustification checks that a quorum of distinct committee members
// signed the justified header. For a recently verified block the earlier
// justification is returned, the signatures of the input are not trusted.
func (v *Verifier) VerifyJustification(unverified chain.UnverifiedJustification) (chain.Justification, error) {
	header := unverified.Header
	if err := header.Validate(); err != nil {
		return chain.Justification{}, fmt.Errorf("invalid justified header: %w", err)
	}
	id := header.ID()

	if id.Number == 0 {
		if id != v.genesis {
			return chain.Justification{}, fmt.Errorf("justification for foreign genesis %s", id)
		}
		return chain.NewJustification(chain.UnverifiedJustification{Header: header}), nil
	}

	if justification, ok := v.verified.Get(id); ok {
		return justification, nil
	}

	msg := justificationMessage(id)
	signers := make(map[chain.AuthorityIndex]struct{}, len(unverified.Signatures))
	valid := make([]chain.AuthoritySignature, 0, len(unverified.Signatures))
	for _, sig := range unverified.Signatures {
		if int(sig.Signer) >= len(v.committee) {
			continue
		}
		if _, duplicate := signers[sig.Signer]; duplicate {
			continue
		}
		if !ed25519.Verify(v.committee[sig.Signer], msg, sig.Signature) {
			continue
		}
		signers[sig.Signer] = struct{}{}
		valid = append(valid, sig)
	}

	if len(signers) < v.Quorum() {
		return chain.Justification{}, InvalidJustificationError{
			BlockID: id,
			Valid:   len(signers),
			Quorum:  v.Quorum(),
		}
	}

	// only counted signatures are kept
	justification := chain.NewJustification(chain.UnverifiedJustification{Header: header, Signatures: valid})
	v.verified.Add(id, justification)
	return justification, nil
}

// VerifyHeader checks the seal of the header. A header conflicting with a
// previously seen one from the same author and slot results in an
// equivocation proof; the header itself is still valid.
func (v *Verifier) VerifyHeader(header chain.Header) (*module.EquivocationProof, error) {
	if err := header.Validate(); err != nil {
		return nil, err
	}
	if header.Number == 0 {
		if header.ID() != v.genesis {
			return nil, fmt.Errorf("foreign genesis header %s", header.ID())
		}
		return nil, nil
	}
	if int(header.Author) >= len(v.committee) {
		return nil, fmt.Errorf("header author %d: %w", header.Author, ErrUnknownAuthority)
	}
	id := header.ID()
	if !ed25519.Verify(v.committee[header.Author], headerMessage(id), header.Seal) {
		return nil, fmt.Errorf("seal of header %s: %w", id, ErrInvalidSignature)
	}

	key := slotKey{author: header.Author, slot: header.Slot}
	previous, ok := v.seen.Get(key)
	if !ok {
		v.seen.Add(key, header)
		return nil, nil
	}
	if previous.ID() == id {
		return nil, nil
	}

	proof := &module.EquivocationProof{
		Author: header.Author,
		Slot:   header.Slot,
		First:  previous,
		Second: header,
		Own:    v.own != nil && *v.own == header.Author,
	}
	v.log.Warn().
		Uint16("author", uint16(header.Author)).
		Uint64("slot", header.Slot).
		Hex("first", logging.ID(previous.ID())).
		Hex("second", logging.ID(id)).
		Bool("own", proof.Own).
		Msg("equivocation detected")
	return proof, nil
}
