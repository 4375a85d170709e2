// Package forest tracks the non-finalized part of the block tree. The forest
// is rooted at the highest finalized block and never holds anything more than
// a fixed depth above it.
package forest

import (
	"fmt"

	"github.com/ef-ds/deque"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/model/messages"
	"github.com/finalitylabs/blocksync/module"
)

// DefaultMaxDepth is the default number of blocks above the root the forest
// keeps track of.
const DefaultMaxDepth = 1800

type handleKind int

const (
	hopelessFork handleKind = iota
	belowMinimal
	highestFinalized
	tooNew
	unknown
	candidate
)

// Forest is the view of the not yet finalized blocks. It is not safe for
// concurrent use.
type Forest struct {
	vertices         map[chain.BlockID]*vertexWithChildren
	root             chain.BlockID
	// rootChildren mirrors the children links of the root, which has no vertex.
	rootChildren     map[chain.BlockID]struct{}
	justifiedBlocks  map[chain.BlockNumber]chain.BlockID
	highestJustified chain.BlockID
	compost          map[chain.BlockID]struct{}
	maxDepth         uint32
}

// New creates a forest rooted at the top finalized block of the chain and
// inserts every imported descendant found in storage. The returned flag is
// set when storage holds blocks too far above the root to be tracked; this
// is not an error.
func New(chainStatus module.ChainStatus, maxDepth uint32) (*Forest, bool, error) {
	top, err := chainStatus.TopFinalized()
	if err != nil {
		return nil, false, fmt.Errorf("could not retrieve top finalized block: %w", err)
	}
	forest := newForest(top.ID(), maxDepth)

	tooMany := false
	queue := deque.New()
	queue.PushBack(forest.root)
	for queue.Len() > 0 {
		item, _ := queue.PopFront()
		id := item.(chain.BlockID)
		children, err := chainStatus.Children(id)
		if err != nil {
			return nil, false, fmt.Errorf("could not retrieve children of %s: %w", id, err)
		}
		for _, header := range children {
			childID := header.ID()
			if forest.isTooNew(childID) {
				tooMany = true
				continue
			}
			err := forest.UpdateBody(header)
			if err != nil {
				return nil, false, fmt.Errorf("could not insert imported block %s: %w", childID, err)
			}
			queue.PushBack(childID)
		}
	}

	return forest, tooMany, nil
}

func newForest(root chain.BlockID, maxDepth uint32) *Forest {
	return &Forest{
		vertices:         make(map[chain.BlockID]*vertexWithChildren),
		root:             root,
		rootChildren:     make(map[chain.BlockID]struct{}),
		justifiedBlocks:  make(map[chain.BlockNumber]chain.BlockID),
		highestJustified: root,
		compost:          make(map[chain.BlockID]struct{}),
		maxDepth:         maxDepth,
	}
}

// Root returns the id of the highest finalized block.
func (f *Forest) Root() chain.BlockID {
	return f.root
}

// HighestJustified returns the id of the highest justified block we know of.
func (f *Forest) HighestJustified() chain.BlockID {
	return f.highestJustified
}

// Size returns the number of tracked vertices.
func (f *Forest) Size() int {
	return len(f.vertices)
}

func (f *Forest) isTooNew(id chain.BlockID) bool {
	return uint64(id.Number) > uint64(f.root.Number)+uint64(f.maxDepth)
}

func (f *Forest) get(id chain.BlockID) (handleKind, *vertexWithChildren) {
	switch {
	case id == f.root:
		return highestFinalized, nil
	case id.Number <= f.root.Number:
		return belowMinimal, nil
	case f.isTooNew(id):
		return tooNew, nil
	}
	if _, ok := f.compost[id]; ok {
		return hopelessFork, nil
	}
	if v, ok := f.vertices[id]; ok {
		return candidate, v
	}
	return unknown, nil
}

// prune removes the vertex and all its descendants, remembering them as
// hopeless forks.
func (f *Forest) prune(id chain.BlockID) {
	stack := deque.New()
	stack.PushBack(id)
	for stack.Len() > 0 {
		item, _ := stack.PopBack()
		current := item.(chain.BlockID)
		v, ok := f.vertices[current]
		if !ok {
			continue
		}
		delete(f.vertices, current)
		delete(f.rootChildren, current)
		f.compost[current] = struct{}{}
		if justified, ok := f.justifiedBlocks[current.Number]; ok && justified == current {
			delete(f.justifiedBlocks, current.Number)
		}
		for child := range v.children {
			stack.PushBack(child)
		}
	}
}

func (f *Forest) insertID(id chain.BlockID, holder *chain.PeerID) error {
	kind, v := f.get(id)
	switch kind {
	case tooNew:
		return fmt.Errorf("block %s more than %d above root %s: %w", id, f.maxDepth, f.root, ErrTooNew)
	case unknown:
		v = newVertex()
		v.addHolder(holder)
		f.vertices[id] = v
	case candidate:
		v.addHolder(holder)
	}
	return nil
}

// connectParent links the vertex with its parent, which must be set already.
func (f *Forest) connectParent(id chain.BlockID) {
	v := f.vertices[id]
	parentID := *v.parent

	kind, parent := f.get(parentID)
	switch kind {
	case unknown:
		parent = newVertex()
		parent.children[id] = struct{}{}
		f.vertices[parentID] = parent
		if v.required {
			f.setRequired(parentID)
		}
	case highestFinalized:
		f.rootChildren[id] = struct{}{}
	case candidate:
		parent.children[id] = struct{}{}
		if v.required {
			f.setRequired(parentID)
		}
	case hopelessFork, belowMinimal:
		f.prune(id)
	}
}

// setRequired marks the vertex and all its known ancestors as required.
func (f *Forest) setRequired(id chain.BlockID) {
	current := id
	for {
		kind, v := f.get(current)
		if kind != candidate || v.required {
			return
		}
		v.required = true
		if v.parent == nil {
			return
		}
		current = *v.parent
	}
}

func (f *Forest) setExplicitlyRequired(id chain.BlockID) bool {
	kind, v := f.get(id)
	if kind != candidate || v.imported || v.explicitlyRequired {
		return false
	}
	v.explicitlyRequired = true
	f.setRequired(id)
	return true
}

func (f *Forest) addJustifiedBlock(id chain.BlockID) {
	if _, ok := f.justifiedBlocks[id.Number]; !ok {
		f.justifiedBlocks[id.Number] = id
	}
}

// UpdateBlockIdentifier records that the holder knows about the block. The
// returned flag is true if this call made the block explicitly required.
func (f *Forest) UpdateBlockIdentifier(id chain.BlockID, holder *chain.PeerID, required bool) (bool, error) {
	err := f.insertID(id, holder)
	if err != nil {
		return false, err
	}
	if required {
		return f.setExplicitlyRequired(id), nil
	}
	return false, nil
}

// UpdateHeader records the header and links the block with its parent. The
// returned flag is true if this call made the block explicitly required.
func (f *Forest) UpdateHeader(header chain.Header, holder *chain.PeerID, required bool) (bool, error) {
	parentID, ok := header.ParentID()
	if !ok {
		return false, ErrHeaderMissingParentID
	}
	id := header.ID()

	err := f.insertID(id, holder)
	if err != nil {
		return false, err
	}

	kind, v := f.get(id)
	if kind == candidate && !v.headerKnown() {
		v.parent = &parentID
		f.connectParent(id)
	}

	if required {
		return f.setExplicitlyRequired(id), nil
	}
	return false, nil
}

// UpdateBody marks the block as imported. Blocks have to be imported in
// ancestor order, so the parent must be imported already or be the root.
func (f *Forest) UpdateBody(header chain.Header) error {
	parentID, ok := header.ParentID()
	if !ok {
		return ErrHeaderMissingParentID
	}
	id := header.ID()

	_, err := f.UpdateHeader(header, nil, false)
	if err != nil {
		return err
	}

	kind, parent := f.get(parentID)
	switch kind {
	case highestFinalized:
	case candidate:
		if !parent.imported {
			return fmt.Errorf("could not import %s: %w", id, ErrParentNotImported)
		}
	default:
		return fmt.Errorf("parent of %s: %w", id, ErrIncorrectParentState)
	}

	kind, v := f.get(id)
	if kind != candidate {
		return fmt.Errorf("could not import %s: %w", id, ErrIncorrectVertexState)
	}
	if v.imported {
		return nil
	}
	v.imported = true
	if v.justification != nil {
		f.addJustifiedBlock(id)
	}
	return nil
}

// UpdateJustification attaches the justification to its block. The returned
// flag is true if the block became the highest justified one. Justifications
// of genesis carry no information and are ignored.
func (f *Forest) UpdateJustification(justification chain.Justification, holder *chain.PeerID) (bool, error) {
	header := justification.Header()
	if header.Number == 0 {
		return false, nil
	}
	if _, ok := header.ParentID(); !ok {
		return false, ErrHeaderMissingParentID
	}

	_, err := f.UpdateHeader(header, holder, false)
	if err != nil {
		return false, err
	}

	id := header.ID()
	kind, v := f.get(id)
	if kind != candidate {
		return false, nil
	}
	if v.justification == nil {
		v.justification = &justification
		f.setRequired(id)
		if v.imported {
			f.addJustifiedBlock(id)
		}
	}
	if id.Number > f.highestJustified.Number {
		f.highestJustified = id
		return true, nil
	}
	return false, nil
}

// TryFinalize finalizes the justified and imported block at the given
// height, if there is one, and returns its justification. The block becomes
// the new root and everything at or below it is dropped.
func (f *Forest) TryFinalize(number chain.BlockNumber) *chain.Justification {
	id, ok := f.justifiedBlocks[number]
	if !ok {
		return nil
	}
	kind, v := f.get(id)
	if kind != candidate || !v.justifiedBlock() {
		return nil
	}

	justification := *v.justification
	delete(f.vertices, id)
	f.root = id
	f.rootChildren = v.children

	var obsolete []chain.BlockID
	for vid := range f.vertices {
		if vid.Number <= number {
			obsolete = append(obsolete, vid)
		}
	}
	for _, vid := range obsolete {
		f.prune(vid)
	}
	for vid := range f.compost {
		if vid.Number <= number {
			delete(f.compost, vid)
		}
	}
	for n := range f.justifiedBlocks {
		if n <= number {
			delete(f.justifiedBlocks, n)
		}
	}
	if kind, _ := f.get(f.highestJustified); kind != candidate {
		f.resetHighestJustified()
	}

	return &justification
}

// resetHighestJustified picks the highest live justified vertex, or the root.
func (f *Forest) resetHighestJustified() {
	f.highestJustified = f.root
	for id, v := range f.vertices {
		if v.justification != nil && id.Number > f.highestJustified.Number {
			f.highestJustified = id
		}
	}
}

// branchKnowledge describes what we know about the branch leading to the
// vertex. It walks up the parents until it finds an imported block, or a block
// with an unknown parent. The second return value is false if the branch
// leads nowhere.
func (f *Forest) branchKnowledge(id chain.BlockID, v *vertexWithChildren) (messages.BranchKnowledge, bool) {
	if !v.headerKnown() {
		return messages.NewLowestID(id), true
	}
	current := *v.parent
	for {
		kind, ancestor := f.get(current)
		switch kind {
		case highestFinalized:
			return messages.NewTopImported(current), true
		case candidate:
			if ancestor.imported {
				return messages.NewTopImported(current), true
			}
			if !ancestor.headerKnown() {
				return messages.NewLowestID(current), true
			}
			current = *ancestor.parent
		default:
			return messages.BranchKnowledge{}, false
		}
	}
}

// RequestInterest tells whether the block should be requested, and if so what
// we know about its branch and who to ask.
func (f *Forest) RequestInterest(id chain.BlockID) Interest {
	kind, v := f.get(id)
	if kind != candidate || v.imported {
		return Interest{Kind: Uninterested}
	}
	isHighest := id == f.highestJustified
	if !v.explicitlyRequired && !isHighest {
		return Interest{Kind: Uninterested}
	}
	branchKnowledge, ok := f.branchKnowledge(id, v)
	if !ok {
		return Interest{Kind: Uninterested}
	}

	interest := Interest{
		Kind:            Required,
		KnowMost:        v.holders(),
		BranchKnowledge: branchKnowledge,
	}
	if isHighest {
		interest.Kind = HighestJustified
	}
	return interest
}

// Importable tells whether the body of the block is wanted.
func (f *Forest) Importable(id chain.BlockID) bool {
	kind, v := f.get(id)
	return kind == candidate && v.importable()
}

// Skippable tells whether the block needs no further processing, because it
// is imported already or not above the root.
func (f *Forest) Skippable(id chain.BlockID) bool {
	kind, v := f.get(id)
	switch kind {
	case belowMinimal, highestFinalized:
		return true
	case candidate:
		return v.imported
	default:
		return false
	}
}
