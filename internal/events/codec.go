package events

import (
	"bidding-engine/internal/domain"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ContentType is set on AMQP publishings carrying encoded events.
const ContentType = "application/cbor"

var encMode cbor.EncMode

func init() {
	var err error
	// Default time encoding drops sub-second precision; bid ordering needs nanos.
	encMode, err = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
}

func EncodeEvent(event *domain.AuctionEvent) ([]byte, error) {
	data, err := encMode.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode auction event: %w", err)
	}
	return data, nil
}

func DecodeEvent(data []byte) (*domain.AuctionEvent, error) {
	var event domain.AuctionEvent
	if err := cbor.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("decode auction event: %w", err)
	}
	return &event, nil
}

func EncodeBid(bid domain.Bid) ([]byte, error) {
	data, err := encMode.Marshal(bid)
	if err != nil {
		return nil, fmt.Errorf("encode bid: %w", err)
	}
	return data, nil
}

func DecodeBid(data []byte) (domain.Bid, error) {
	var bid domain.Bid
	if err := cbor.Unmarshal(data, &bid); err != nil {
		return domain.Bid{}, fmt.Errorf("decode bid: %w", err)
	}
	return bid, nil
}
