package negotiations

import (
	"context"
	"testing"
	"time"

	"stackyard-backend/internal/application/contracts"
	"stackyard-backend/internal/application/directory"
	"stackyard-backend/internal/constants"
	"stackyard-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupNegotiationsTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Listing{}, &domain.NegotiationOffer{}, &domain.PurchaseOrder{},
		&domain.ContractAllocation{}, &domain.SignatureEvent{}, &domain.ContractEvent{},
	))
	return &Service{DB: db, Contracts: &contracts.Service{DB: db}}, db
}

func seedListing(t *testing.T, db *gorm.DB, sellerOrg uuid.UUID, stackID string, tons float64) *domain.Listing {
	listing := &domain.Listing{
		StackID:           stackID,
		SellerOrgID:       sellerOrg,
		Product:           "alfalfa",
		AskingPricePerTon: 230,
		EstimatedTons:     tons,
		Status:            domain.ListingAvailable,
	}
	require.NoError(t, db.Create(listing).Error)
	return listing
}

func testActor(orgID uuid.UUID, code, role string) directory.Actor {
	return directory.Actor{UserID: uuid.New(), OrgID: orgID, OrgCode: code, Role: role}
}

func TestPropose_DefaultsTonsAndAnchorsThread(t *testing.T) {
	svc, db := setupNegotiationsTest(t)
	sellerOrg, buyerOrg := uuid.New(), uuid.New()
	seedListing(t, db, sellerOrg, "STK-1001", 120)

	offer, err := svc.Propose(context.Background(), ProposeInput{
		Actor:       testActor(buyerOrg, "BUY", constants.Manager),
		StackID:     "STK-1001",
		PricePerTon: 215,
	})
	require.NoError(t, err)
	assert.Equal(t, offer.OfferID, offer.ThreadID)
	assert.Equal(t, 120.0, offer.Tons)
	assert.Equal(t, domain.OfferPending, offer.Status)
	assert.Equal(t, buyerOrg, offer.AuthorOrgID)

	var event domain.ContractEvent
	require.NoError(t, db.Where("subject_id = ? AND event_type = ?", offer.ThreadID, "PROPOSED").First(&event).Error)
}

func TestPropose_OwnListingForbidden(t *testing.T) {
	svc, db := setupNegotiationsTest(t)
	sellerOrg := uuid.New()
	seedListing(t, db, sellerOrg, "STK-1001", 120)

	_, err := svc.Propose(context.Background(), ProposeInput{
		Actor:       testActor(sellerOrg, "SEL", constants.Manager),
		StackID:     "STK-1001",
		PricePerTon: 215,
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestPropose_ReservedListingConflicts(t *testing.T) {
	svc, db := setupNegotiationsTest(t)
	listing := seedListing(t, db, uuid.New(), "STK-1001", 120)
	require.NoError(t, db.Model(listing).Update("status", domain.ListingReserved).Error)

	_, err := svc.Propose(context.Background(), ProposeInput{
		Actor:       testActor(uuid.New(), "BUY", constants.Manager),
		StackID:     "STK-1001",
		PricePerTon: 215,
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestPropose_TonsAboveEstimated(t *testing.T) {
	svc, db := setupNegotiationsTest(t)
	seedListing(t, db, uuid.New(), "STK-1001", 120)

	tons := 121.0
	_, err := svc.Propose(context.Background(), ProposeInput{
		Actor:       testActor(uuid.New(), "BUY", constants.Manager),
		StackID:     "STK-1001",
		PricePerTon: 215,
		Tons:        &tons,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCounter_TurnTaking(t *testing.T) {
	svc, db := setupNegotiationsTest(t)
	sellerOrg, buyerOrg := uuid.New(), uuid.New()
	seedListing(t, db, sellerOrg, "STK-1001", 120)

	buyer := testActor(buyerOrg, "BUY", constants.Manager)
	seller := testActor(sellerOrg, "SEL", constants.Manager)

	root, err := svc.Propose(context.Background(), ProposeInput{
		Actor: buyer, StackID: "STK-1001", PricePerTon: 215,
	})
	require.NoError(t, err)

	// The buyer authored the pending offer, so the buyer cannot respond.
	price := 220.0
	_, err = svc.Counter(context.Background(), RespondInput{
		Actor: buyer, ThreadID: root.ThreadID, PricePerTon: &price,
	})
	assert.ErrorIs(t, err, domain.ErrTurnViolation)

	// An outside organization cannot respond at all.
	_, err = svc.Counter(context.Background(), RespondInput{
		Actor: testActor(uuid.New(), "XXX", constants.Manager), ThreadID: root.ThreadID, PricePerTon: &price,
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// The counterparty can.
	next, err := svc.Counter(context.Background(), RespondInput{
		Actor: seller, ThreadID: root.ThreadID, PricePerTon: &price,
	})
	require.NoError(t, err)
	assert.Equal(t, root.ThreadID, next.ThreadID)
	assert.Equal(t, 220.0, next.PricePerTon)
	require.NotNil(t, next.ParentOfferID)
	assert.Equal(t, root.OfferID, *next.ParentOfferID)

	// Exactly one pending offer per thread.
	var pendingCount int64
	require.NoError(t, db.Model(&domain.NegotiationOffer{}).
		Where("thread_id = ? AND status = ?", root.ThreadID, domain.OfferPending).
		Count(&pendingCount).Error)
	assert.Equal(t, int64(1), pendingCount)

	var closed domain.NegotiationOffer
	require.NoError(t, db.Where("offer_id = ?", root.OfferID).First(&closed).Error)
	assert.Equal(t, domain.OfferCountered, closed.Status)
}

func TestCounter_CarriesTermsForward(t *testing.T) {
	svc, db := setupNegotiationsTest(t)
	sellerOrg, buyerOrg := uuid.New(), uuid.New()
	seedListing(t, db, sellerOrg, "STK-1001", 120)

	tons := 100.0
	root, err := svc.Propose(context.Background(), ProposeInput{
		Actor: testActor(buyerOrg, "BUY", constants.Manager), StackID: "STK-1001", PricePerTon: 215, Tons: &tons,
	})
	require.NoError(t, err)

	// Seller counters on price only; tons carry forward.
	price := 225.0
	next, err := svc.Counter(context.Background(), RespondInput{
		Actor: testActor(sellerOrg, "SEL", constants.Manager), ThreadID: root.ThreadID, PricePerTon: &price,
	})
	require.NoError(t, err)
	assert.Equal(t, 225.0, next.PricePerTon)
	assert.Equal(t, 100.0, next.Tons)

	// Buyer counters with nothing restated; both terms carry forward.
	final, err := svc.Counter(context.Background(), RespondInput{
		Actor: testActor(buyerOrg, "BUY", constants.Manager), ThreadID: root.ThreadID,
	})
	require.NoError(t, err)
	assert.Equal(t, 225.0, final.PricePerTon)
	assert.Equal(t, 100.0, final.Tons)
}

func TestReject_ClosesThread(t *testing.T) {
	svc, db := setupNegotiationsTest(t)
	sellerOrg, buyerOrg := uuid.New(), uuid.New()
	seedListing(t, db, sellerOrg, "STK-1001", 120)

	root, err := svc.Propose(context.Background(), ProposeInput{
		Actor: testActor(buyerOrg, "BUY", constants.Manager), StackID: "STK-1001", PricePerTon: 215,
	})
	require.NoError(t, err)

	seller := testActor(sellerOrg, "SEL", constants.Manager)
	rejected, err := svc.Reject(context.Background(), RespondInput{Actor: seller, ThreadID: root.ThreadID})
	require.NoError(t, err)
	assert.Equal(t, domain.OfferRejected, rejected.Status)
	assert.True(t, rejected.IsTerminal())

	// Any further response hits a closed thread.
	price := 220.0
	_, err = svc.Counter(context.Background(), RespondInput{
		Actor: testActor(buyerOrg, "BUY", constants.Manager), ThreadID: root.ThreadID, PricePerTon: &price,
	})
	assert.ErrorIs(t, err, domain.ErrThreadClosed)
}

func TestRespond_UnknownThread(t *testing.T) {
	svc, _ := setupNegotiationsTest(t)
	_, err := svc.Reject(context.Background(), RespondInput{
		Actor: testActor(uuid.New(), "BUY", constants.Manager), ThreadID: uuid.New(),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAccept_RequiresSigningAuthority(t *testing.T) {
	svc, db := setupNegotiationsTest(t)
	sellerOrg, buyerOrg := uuid.New(), uuid.New()
	seedListing(t, db, sellerOrg, "STK-1001", 120)

	root, err := svc.Propose(context.Background(), ProposeInput{
		Actor: testActor(buyerOrg, "BUY", constants.Manager), StackID: "STK-1001", PricePerTon: 215,
	})
	require.NoError(t, err)

	_, _, err = svc.Accept(context.Background(), RespondInput{
		Actor: testActor(sellerOrg, "SEL", constants.Manager), ThreadID: root.ThreadID,
	}, contracts.CreateDraftInput{Destination: "Yard 4, Twin Falls ID"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestAccept_CreatesDraftAndReservesListing(t *testing.T) {
	svc, db := setupNegotiationsTest(t)
	sellerOrg, buyerOrg := uuid.New(), uuid.New()
	listing := seedListing(t, db, sellerOrg, "STK-1001", 120)

	tons := 100.0
	root, err := svc.Propose(context.Background(), ProposeInput{
		Actor: testActor(buyerOrg, "BUY", constants.Manager), StackID: "STK-1001", PricePerTon: 215, Tons: &tons,
	})
	require.NoError(t, err)

	seller := testActor(sellerOrg, "SEL", constants.Admin)
	accepted, order, err := svc.Accept(context.Background(), RespondInput{
		Actor: seller, ThreadID: root.ThreadID,
	}, contracts.CreateDraftInput{Destination: "Yard 4, Twin Falls ID"})
	require.NoError(t, err)

	assert.Equal(t, domain.OfferAccepted, accepted.Status)
	require.NotNil(t, accepted.PurchaseOrderID)
	assert.Equal(t, order.OrderID, *accepted.PurchaseOrderID)

	assert.Equal(t, domain.OrderDraft, order.Status)
	assert.Equal(t, 100.0, order.ContractedTons)
	assert.Equal(t, 215.0, order.PricePerTon)
	assert.Equal(t, buyerOrg, order.BuyerOrgID)
	assert.Equal(t, sellerOrg, order.SellerOrgID)
	assert.Regexp(t, `^PO-\d{4}-\d{6}$`, order.OrderNumber)

	var fresh domain.Listing
	require.NoError(t, db.Where("listing_id = ?", listing.ListingID).First(&fresh).Error)
	assert.Equal(t, domain.ListingReserved, fresh.Status)

	var allocation domain.ContractAllocation
	require.NoError(t, db.Where("order_id = ?", order.OrderID).First(&allocation).Error)
	assert.Equal(t, listing.ListingID, allocation.ListingID)
	assert.Equal(t, 100.0, allocation.AllocatedTons)
}

func TestAccept_ReservedListingRollsBack(t *testing.T) {
	svc, db := setupNegotiationsTest(t)
	sellerOrg, buyerOrg := uuid.New(), uuid.New()
	listing := seedListing(t, db, sellerOrg, "STK-1001", 120)

	root, err := svc.Propose(context.Background(), ProposeInput{
		Actor: testActor(buyerOrg, "BUY", constants.Manager), StackID: "STK-1001", PricePerTon: 215,
	})
	require.NoError(t, err)

	// Listing gets reserved out from under the thread.
	require.NoError(t, db.Model(&domain.Listing{}).
		Where("listing_id = ?", listing.ListingID).
		Update("status", domain.ListingReserved).Error)

	_, _, err = svc.Accept(context.Background(), RespondInput{
		Actor: testActor(sellerOrg, "SEL", constants.Admin), ThreadID: root.ThreadID,
	}, contracts.CreateDraftInput{})
	assert.ErrorIs(t, err, domain.ErrAllocationConflict)

	// The acceptance rolled back with the reservation: the offer is still pending.
	var fresh domain.NegotiationOffer
	require.NoError(t, db.Where("offer_id = ?", root.OfferID).First(&fresh).Error)
	assert.Equal(t, domain.OfferPending, fresh.Status)

	var orderCount int64
	require.NoError(t, db.Model(&domain.PurchaseOrder{}).Count(&orderCount).Error)
	assert.Equal(t, int64(0), orderCount)
}

func TestListThreads_LatestOfferPerThread(t *testing.T) {
	svc, db := setupNegotiationsTest(t)
	sellerOrg, buyerOrg := uuid.New(), uuid.New()
	seedListing(t, db, sellerOrg, "STK-1001", 120)
	seedListing(t, db, sellerOrg, "STK-1002", 60)

	buyer := testActor(buyerOrg, "BUY", constants.Manager)
	seller := testActor(sellerOrg, "SEL", constants.Manager)

	first, err := svc.Propose(context.Background(), ProposeInput{Actor: buyer, StackID: "STK-1001", PricePerTon: 215})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond) // distinct createdAt for the MAX() join
	price := 225.0
	counter, err := svc.Counter(context.Background(), RespondInput{Actor: seller, ThreadID: first.ThreadID, PricePerTon: &price})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := svc.Propose(context.Background(), ProposeInput{Actor: buyer, StackID: "STK-1002", PricePerTon: 180})
	require.NoError(t, err)

	threads, err := svc.ListThreads(context.Background(), buyerOrg)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, second.OfferID, threads[0].OfferID)
	assert.Equal(t, counter.OfferID, threads[1].OfferID)

	// An uninvolved organization sees nothing.
	none, err := svc.ListThreads(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetThread_ChainRootFirst(t *testing.T) {
	svc, db := setupNegotiationsTest(t)
	sellerOrg, buyerOrg := uuid.New(), uuid.New()
	seedListing(t, db, sellerOrg, "STK-1001", 120)

	buyer := testActor(buyerOrg, "BUY", constants.Manager)
	seller := testActor(sellerOrg, "SEL", constants.Manager)

	root, err := svc.Propose(context.Background(), ProposeInput{Actor: buyer, StackID: "STK-1001", PricePerTon: 215})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	price := 225.0
	_, err = svc.Counter(context.Background(), RespondInput{Actor: seller, ThreadID: root.ThreadID, PricePerTon: &price})
	require.NoError(t, err)

	chain, err := svc.GetThread(context.Background(), root.ThreadID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, root.OfferID, chain[0].OfferID)
	assert.Nil(t, chain[0].ParentOfferID)
	require.NotNil(t, chain[1].ParentOfferID)
	assert.Equal(t, root.OfferID, *chain[1].ParentOfferID)

	_, err = svc.GetThread(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
