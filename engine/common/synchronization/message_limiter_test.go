package synchronization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/model/messages"
	"github.com/finalitylabs/blocksync/network/codec/cbor"
	"github.com/finalitylabs/blocksync/utils/unittest"
)

func blockItems(blocks []chain.Block) []messages.ResponseItem {
	items := make([]messages.ResponseItem, 0, len(blocks))
	for _, block := range blocks {
		items = append(items, messages.BlockItem(block))
	}
	return items
}

func TestMessageLimiter(t *testing.T) {
	codec := cbor.NewCodec()
	genesis := unittest.GenesisFixture()
	items := blockItems(unittest.ChainFixture(genesis.Header, 30))

	encodedSize := func(items []messages.ResponseItem) int {
		data, err := codec.Encode(&messages.RequestResponse{Items: items})
		require.NoError(t, err)
		return len(data)
	}

	t.Run("everything fits", func(t *testing.T) {
		responses, err := NewMessageLimiter(codec, encodedSize(items)).Split(items)
		require.NoError(t, err)
		require.Len(t, responses, 1)
		assert.Equal(t, items, responses[0].Items)
	})

	t.Run("largest prefixes", func(t *testing.T) {
		limit := encodedSize(items[:7])
		responses, err := NewMessageLimiter(codec, limit).Split(items)
		require.NoError(t, err)
		require.Greater(t, len(responses), 1)

		var joined []messages.ResponseItem
		for i, response := range responses {
			assert.LessOrEqual(t, encodedSize(response.Items), limit)
			if i < len(responses)-1 {
				next := responses[i+1].Items[0]
				assert.Greater(t, encodedSize(append(append([]messages.ResponseItem{}, response.Items...), next)), limit,
					"response %d could have taken one more item", i)
			}
			joined = append(joined, response.Items...)
		}
		assert.Equal(t, items, joined)
	})

	t.Run("single item too big", func(t *testing.T) {
		limit := encodedSize(items[:3])
		huge := messages.BlockItem(chain.NewBlock(genesis.Header, 0, 1, make([]byte, 4*limit)))
		withHuge := append(append([]messages.ResponseItem{}, items[:5]...), huge, items[5])

		responses, err := NewMessageLimiter(codec, limit).Split(withHuge)
		require.ErrorIs(t, err, ErrItemTooBig)

		var joined []messages.ResponseItem
		for _, response := range responses {
			joined = append(joined, response.Items...)
		}
		assert.Equal(t, items[:5], joined, "items before the oversized one are still sent")
	})

	t.Run("limit of the codec", func(t *testing.T) {
		limit := encodedSize(items[:4])
		limited := cbor.NewCodec(cbor.WithMaxMessageSize(limit))
		responses, err := NewMessageLimiter(limited, limit).Split(items)
		require.NoError(t, err)
		for _, response := range responses {
			_, err := limited.Encode(response)
			assert.NoError(t, err)
		}
	})

	t.Run("nothing to split", func(t *testing.T) {
		responses, err := NewMessageLimiter(codec, 10).Split(nil)
		require.NoError(t, err)
		assert.Empty(t, responses)
	})
}
