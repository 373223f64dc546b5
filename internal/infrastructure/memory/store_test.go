package memory

import (
	"bidding-engine/internal/domain"
	"bidding-engine/internal/infrastructure/storetest"
	"testing"
)

func TestAuctionStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.AuctionStore {
		return NewAuctionStore()
	})
}
