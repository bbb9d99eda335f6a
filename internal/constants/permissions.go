package constants

const (
	ViewData         = "view_data"
	CreateListing    = "create_listing"
	NegotiateOffer   = "negotiate_offer"
	AcceptOffer      = "accept_offer"
	SignContract     = "sign_contract"
	CompleteContract = "complete_contract"
	RecordDelivery   = "record_delivery"
	ReviseDelivery   = "revise_delivery"
)
