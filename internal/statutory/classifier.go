package statutory

import (
	"strings"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
)

// Classifier maps chart of accounts entries to statutory buckets. It holds an
// ordered rule table and is a pure function of the account's code, name, and
// type: the same account always classifies to the same bucket.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier over the supplied ordered rule table.
func NewClassifier(rules []Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{rules: append([]Rule(nil), rules...)}
}

// Classify resolves the statutory bucket for an account. Evaluation walks the
// table in order and returns on the first match, so prefix rules dominate
// keyword rules, which dominate type defaults. The table always carries a
// default per account type, so classification is total.
func (c *Classifier) Classify(account ledger.Account) Bucket {
	name := strings.ToLower(account.Name)
	for _, rule := range c.rules {
		switch rule.Kind {
		case RuleKindPrefix:
			if strings.HasPrefix(account.Code, rule.Prefix) {
				return rule.Bucket
			}
		case RuleKindKeyword:
			if rule.Type != "" && rule.Type != account.Type {
				continue
			}
			if strings.Contains(name, strings.ToLower(rule.Keyword)) {
				return rule.Bucket
			}
		case RuleKindTypeDefault:
			if rule.Type == account.Type {
				return rule.Bucket
			}
		}
	}
	// Unreachable with a validated table; kept as a conservative fallback for
	// accounts of unknown type.
	return typeFallback(account.Type)
}

func typeFallback(t ledger.AccountType) Bucket {
	switch t {
	case ledger.AccountTypeRevenue:
		return BucketOtherRevenue
	case ledger.AccountTypeExpense:
		return BucketAdministrative
	case ledger.AccountTypeAsset:
		return BucketOtherReceivables
	case ledger.AccountTypeLiability:
		return BucketOtherPayables
	default:
		return BucketRetainedEarnings
	}
}

// Section identifies the financial statement a bucket belongs to.
type Section int

const (
	SectionRevenue Section = iota
	SectionExpense
	SectionAsset
	SectionLiability
	SectionEquity
)

// SectionOf returns the statement section a bucket reports under.
func SectionOf(b Bucket) Section {
	switch b {
	case BucketSalesRevenue, BucketServiceRevenue, BucketOtherRevenue, BucketFinanceIncome, BucketOtherIncome:
		return SectionRevenue
	case BucketCostOfSales, BucketManufacturingCosts, BucketResearchDevelopment,
		BucketSalesExpenses, BucketAdministrative, BucketFinanceExpenses, BucketOtherExpenses:
		return SectionExpense
	case BucketCash, BucketSecurities, BucketReceivables, BucketOtherReceivables, BucketInventory, BucketFixedAssets:
		return SectionAsset
	case BucketShortTermLoans, BucketPayables, BucketOtherPayables, BucketLongTermLiabilities:
		return SectionLiability
	default:
		return SectionEquity
	}
}

// SectionForType returns the section an account type must report under on the
// balance sheet; it gates which top-level total an account contributes to.
func SectionForType(t ledger.AccountType) Section {
	switch t {
	case ledger.AccountTypeAsset:
		return SectionAsset
	case ledger.AccountTypeLiability:
		return SectionLiability
	default:
		return SectionEquity
	}
}
