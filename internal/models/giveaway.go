package models

// ClaimResponseType is the outcome class of a giveaway claim.
type ClaimResponseType string

const (
	ClaimAccepted    ClaimResponseType = "claim_accepted"
	ClaimDenied      ClaimResponseType = "claim_denied"
	ClaimServerError ClaimResponseType = "claim_server_error"
)

// ClaimRejection explains a denied claim.
type ClaimRejection string

const (
	RejectInauthentic    ClaimRejection = "inauthentic"
	RejectNotFound       ClaimRejection = "giveaway_not_found"
	RejectPaused         ClaimRejection = "paused"
	RejectAlreadyClaimed ClaimRejection = "existing_wallet_claim"
	RejectOverLimit      ClaimRejection = "over_limit"
	RejectNoWallet       ClaimRejection = "no_linked_wallet"
)

// Giveaway is a limited pool of items claimable from a scene.
type Giveaway struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Paused     bool     `json:"paused"`
	Allocation int      `json:"allocation"` // Total items available, 0 = unlimited
	SceneIDs   []string `json:"scenes"`     // Scenes allowed to hand it out, empty = any
}

// ClaimRequest is a viewer's attempt to claim a giveaway item.
type ClaimRequest struct {
	GiveawayID string
	SceneID    string
	UserID     string
	Wallet     string
}

// ClaimResult is returned verbatim to the claiming viewer.
type ClaimResult struct {
	ResponseType ClaimResponseType `json:"responseType"`
	Reason       ClaimRejection    `json:"reason,omitempty"`
}
