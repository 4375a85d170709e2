package synchronization

import (
	"errors"
	"fmt"

	"github.com/finalitylabs/blocksync/model/messages"
	"github.com/finalitylabs/blocksync/network"
	"github.com/finalitylabs/blocksync/network/codec"
)

// ErrItemTooBig is returned when a single response item does not fit into a
// message on its own.
var ErrItemTooBig = errors.New("response item exceeds the message size limit")

// MessageLimiter cuts response items into consecutive chunks, each the
// largest prefix of the remaining items whose encoded response fits into
// the limit.
type MessageLimiter struct {
	codec network.Codec
	limit int
}

func NewMessageLimiter(c network.Codec, limit int) *MessageLimiter {
	return &MessageLimiter{codec: c, limit: limit}
}

// Split returns the responses to send, in order. On ErrItemTooBig the
// responses covering the items before the oversized one are returned too.
func (l *MessageLimiter) Split(items []messages.ResponseItem) ([]*messages.RequestResponse, error) {
	var responses []*messages.RequestResponse
	for start := 0; start < len(items); {
		end, err := l.largestPrefix(items, start)
		if err != nil {
			return responses, err
		}
		responses = append(responses, &messages.RequestResponse{Items: items[start:end]})
		start = end
	}
	return responses, nil
}

func (l *MessageLimiter) largestPrefix(items []messages.ResponseItem, start int) (int, error) {
	// summed sizes of single item responses overestimate the size of a
	// prefix, the search starts where they first exceed the limit
	end, total := start, 0
	for end < len(items) && total <= l.limit {
		size, err := l.size(items[end : end+1])
		if err != nil {
			return start, err
		}
		total += size
		end++
	}

	for end > start {
		fits, err := l.fits(items[start:end])
		if err != nil {
			return start, err
		}
		if fits {
			break
		}
		end--
	}
	if end == start {
		return start, fmt.Errorf("item %d of response: %w", start, ErrItemTooBig)
	}

	// the envelope was counted once per item, more items may fit
	for end < len(items) {
		fits, err := l.fits(items[start : end+1])
		if err != nil {
			return start, err
		}
		if !fits {
			break
		}
		end++
	}
	return end, nil
}

func (l *MessageLimiter) fits(items []messages.ResponseItem) (bool, error) {
	size, err := l.size(items)
	if err != nil {
		return false, err
	}
	return size <= l.limit, nil
}

func (l *MessageLimiter) size(items []messages.ResponseItem) (int, error) {
	data, err := l.codec.Encode(&messages.RequestResponse{Items: items})
	var tooLarge codec.MessageTooLargeError
	if errors.As(err, &tooLarge) {
		return tooLarge.Size, nil
	}
	if err != nil {
		return 0, fmt.Errorf("could not encode response: %w", err)
	}
	return len(data), nil
}
