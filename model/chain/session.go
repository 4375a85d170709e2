package chain

// SessionID is the index of a session, a fixed-length run of blocks that
// share the same committee.
type SessionID uint32

// SessionBoundaryInfo computes session boundaries for a fixed session period.
type SessionBoundaryInfo struct {
	period uint32
}

// NewSessionBoundaryInfo returns boundary info for sessions of the given
// length. The period must be positive.
func NewSessionBoundaryInfo(period uint32) SessionBoundaryInfo {
	if period == 0 {
		panic("session period must be positive")
	}
	return SessionBoundaryInfo{period: period}
}

// Period returns the number of blocks in a session.
func (s SessionBoundaryInfo) Period() uint32 {
	return s.period
}

// SessionID returns the session the block with the given number belongs to.
func (s SessionBoundaryInfo) SessionID(number BlockNumber) SessionID {
	return SessionID(uint32(number) / s.period)
}

// FirstBlockOfSession returns the number of the first block of the session.
func (s SessionBoundaryInfo) FirstBlockOfSession(session SessionID) BlockNumber {
	return BlockNumber(uint32(session) * s.period)
}

// LastBlockOfSession returns the number of the last block of the session,
// which is always justified.
func (s SessionBoundaryInfo) LastBlockOfSession(session SessionID) BlockNumber {
	return BlockNumber((uint32(session)+1)*s.period - 1)
}
