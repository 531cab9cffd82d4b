package models

// VerificationKind names how a quest completion is proven
type VerificationKind string

const (
	VerificationSignature        VerificationKind = "signature"
	VerificationBalanceThreshold VerificationKind = "balance_threshold"
	VerificationExactAnswer      VerificationKind = "exact_answer"
	VerificationLinkClickConfirm VerificationKind = "link_click_confirm"
)

// Verification is the rule a quest is completed under. The set of implementations
// is closed: SignatureRule, BalanceThresholdRule, ExactAnswerRule, LinkClickRule.
type Verification interface {
	Kind() VerificationKind
	sealed()
}

// SignatureRule is satisfied by the wallet ownership proof of the login flow.
type SignatureRule struct{}

// BalanceThresholdRule requires the wallet balance reported by the balance oracle
// to be at least MinBalance.
type BalanceThresholdRule struct {
	MinBalance float64
}

// ExactAnswerRule requires a trimmed, case-insensitive match against Answer.
type ExactAnswerRule struct {
	Answer string
}

// LinkClickRule accepts the client's link-clicked confirmation.
type LinkClickRule struct{}

func (SignatureRule) Kind() VerificationKind        { return VerificationSignature }
func (BalanceThresholdRule) Kind() VerificationKind { return VerificationBalanceThreshold }
func (ExactAnswerRule) Kind() VerificationKind      { return VerificationExactAnswer }
func (LinkClickRule) Kind() VerificationKind        { return VerificationLinkClickConfirm }

func (SignatureRule) sealed()        {}
func (BalanceThresholdRule) sealed() {}
func (ExactAnswerRule) sealed()      {}
func (LinkClickRule) sealed()        {}

// Quest is the part of a quest definition the ledger needs. Content (markdown,
// images) is owned elsewhere.
type Quest struct {
	ID           string
	Title        string
	XPReward     int64
	PathID       string
	Order        int
	Verification Verification
}
