package services

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"wallet-quest-ledger/models"

	"github.com/gosimple/slug"
	"github.com/pelletier/go-toml/v2"
)

// LinkClickedSentinel is the answer a client submits to confirm a link quest.
const LinkClickedSentinel = "link_clicked"

// QuestCatalog is the read-only quest lookup the ledger consults.
type QuestCatalog struct {
	byID           map[string]models.Quest
	ordered        []models.Quest
	signatureQuest models.Quest
}

// NewQuestCatalog validates the definitions: unique ids, non-negative rewards,
// complete rule parameters and exactly one signature quest.
func NewQuestCatalog(quests []models.Quest) (*QuestCatalog, error) {
	c := &QuestCatalog{byID: make(map[string]models.Quest, len(quests))}
	signatureQuests := 0

	for _, q := range quests {
		if strings.TrimSpace(q.ID) == "" {
			return nil, fmt.Errorf("quest %q: id is required", q.Title)
		}
		if _, dup := c.byID[q.ID]; dup {
			return nil, fmt.Errorf("quest %q: duplicate id", q.ID)
		}
		if q.XPReward < 0 {
			return nil, fmt.Errorf("quest %q: xp reward must be >= 0", q.ID)
		}
		switch rule := q.Verification.(type) {
		case models.SignatureRule:
			signatureQuests++
			c.signatureQuest = q
		case models.ExactAnswerRule:
			if strings.TrimSpace(rule.Answer) == "" {
				return nil, fmt.Errorf("quest %q: exact answer quests need an answer", q.ID)
			}
		case models.BalanceThresholdRule:
			if rule.MinBalance < 0 {
				return nil, fmt.Errorf("quest %q: min balance must be >= 0", q.ID)
			}
		case models.LinkClickRule:
		default:
			return nil, fmt.Errorf("quest %q: missing verification rule", q.ID)
		}
		c.byID[q.ID] = q
		c.ordered = append(c.ordered, q)
	}

	if signatureQuests != 1 {
		return nil, fmt.Errorf("catalog needs exactly one signature quest, found %d", signatureQuests)
	}

	sort.SliceStable(c.ordered, func(i, j int) bool {
		if c.ordered[i].PathID != c.ordered[j].PathID {
			return c.ordered[i].PathID < c.ordered[j].PathID
		}
		return c.ordered[i].Order < c.ordered[j].Order
	})
	return c, nil
}

// Lookup resolves a quest id.
func (c *QuestCatalog) Lookup(id string) (models.Quest, bool) {
	q, ok := c.byID[id]
	return q, ok
}

// SignatureQuest is the wallet-ownership quest completed by login.
func (c *QuestCatalog) SignatureQuest() models.Quest {
	return c.signatureQuest
}

// All returns the quests ordered by path, then order within the path.
func (c *QuestCatalog) All() []models.Quest {
	return append([]models.Quest(nil), c.ordered...)
}

// questFile is the TOML shape of a catalog file:
//
//	[[quest]]
//	id = "hold-sol"
//	title = "Hold at least 0.1 SOL"
//	xp_reward = 100
//	path = "On-chain"
//	order = 1
//	kind = "balance_threshold"
//	min_balance = 0.1
type questFile struct {
	Quests []questDefinition `toml:"quest"`
}

type questDefinition struct {
	ID         string   `toml:"id"`
	Title      string   `toml:"title"`
	XPReward   int64    `toml:"xp_reward"`
	Path       string   `toml:"path"`
	Order      int      `toml:"order"`
	Kind       string   `toml:"kind"`
	MinBalance *float64 `toml:"min_balance"`
	Answer     *string  `toml:"answer"`
}

func (d questDefinition) toQuest() (models.Quest, error) {
	q := models.Quest{
		ID:       d.ID,
		Title:    d.Title,
		XPReward: d.XPReward,
		PathID:   slug.Make(d.Path),
		Order:    d.Order,
	}

	switch models.VerificationKind(d.Kind) {
	case models.VerificationSignature:
		q.Verification = models.SignatureRule{}
	case models.VerificationLinkClickConfirm:
		q.Verification = models.LinkClickRule{}
	case models.VerificationExactAnswer:
		if d.Answer == nil {
			return q, fmt.Errorf("quest %q: kind %s requires answer", d.ID, d.Kind)
		}
		q.Verification = models.ExactAnswerRule{Answer: *d.Answer}
	case models.VerificationBalanceThreshold:
		if d.MinBalance == nil {
			return q, fmt.Errorf("quest %q: kind %s requires min_balance", d.ID, d.Kind)
		}
		q.Verification = models.BalanceThresholdRule{MinBalance: *d.MinBalance}
	default:
		return q, fmt.Errorf("quest %q: unknown kind %q", d.ID, d.Kind)
	}
	return q, nil
}

// ParseQuestCatalog decodes a TOML catalog.
func ParseQuestCatalog(data []byte) (*QuestCatalog, error) {
	var file questFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode quest catalog: %w", err)
	}
	quests := make([]models.Quest, 0, len(file.Quests))
	for _, d := range file.Quests {
		q, err := d.toQuest()
		if err != nil {
			return nil, err
		}
		quests = append(quests, q)
	}
	return NewQuestCatalog(quests)
}

// LoadQuestCatalog reads a TOML catalog file. An empty path selects the built-in catalog.
func LoadQuestCatalog(path string) (*QuestCatalog, error) {
	if path == "" {
		return DefaultQuestCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open quest catalog: %w", err)
	}
	return ParseQuestCatalog(data)
}

// DefaultQuestCatalog is the built-in onboarding path.
func DefaultQuestCatalog() *QuestCatalog {
	c, err := NewQuestCatalog([]models.Quest{
		{ID: "verify-wallet", Title: "Verify wallet ownership", XPReward: 50, PathID: "getting-started", Order: 1, Verification: models.SignatureRule{}},
		{ID: "follow-on-x", Title: "Follow us on X", XPReward: 25, PathID: "getting-started", Order: 2, Verification: models.LinkClickRule{}},
		{ID: "join-discord", Title: "Join the Discord", XPReward: 25, PathID: "getting-started", Order: 3, Verification: models.LinkClickRule{}},
		{ID: "what-signs-transactions", Title: "What signs your transactions?", XPReward: 40, PathID: "web3-basics", Order: 1, Verification: models.ExactAnswerRule{Answer: "private key"}},
		{ID: "what-is-a-block", Title: "What batches transactions on-chain?", XPReward: 40, PathID: "web3-basics", Order: 2, Verification: models.ExactAnswerRule{Answer: "block"}},
		{ID: "hold-sol", Title: "Hold at least 0.1 SOL", XPReward: 100, PathID: "on-chain", Order: 1, Verification: models.BalanceThresholdRule{MinBalance: 0.1}},
	})
	if err != nil {
		panic(err)
	}
	return c
}
