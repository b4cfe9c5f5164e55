package statutory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
)

// RuleKind tags the classification rule variants.
type RuleKind string

const (
	// RuleKindPrefix matches on an account-code prefix.
	RuleKindPrefix RuleKind = "PREFIX"
	// RuleKindKeyword matches a case-insensitive substring of the account name.
	RuleKindKeyword RuleKind = "KEYWORD"
	// RuleKindTypeDefault catches any account of the given type.
	RuleKindTypeDefault RuleKind = "TYPE_DEFAULT"
)

// Rule is one ordered entry of the classification table. Table order is part
// of the contract: rules are evaluated top to bottom and the first match wins.
// Prefix rules must precede keyword rules, which must precede type defaults;
// LoadRules rejects tables violating that precedence.
type Rule struct {
	Kind    RuleKind           `json:"kind"`
	Prefix  string             `json:"prefix,omitempty"`
	Keyword string             `json:"keyword,omitempty"`
	Type    ledger.AccountType `json:"type,omitempty"`
	Bucket  Bucket             `json:"bucket"`
}

// DefaultRules returns the built-in rule table for the Israeli uniform chart
// of accounts. Code ranges: 1xx assets, 2xx liabilities, 3xx equity,
// 4xx revenue, 5xx costs and expenses.
func DefaultRules() []Rule {
	return []Rule{
		{Kind: RuleKindPrefix, Prefix: "100", Bucket: BucketCash},
		{Kind: RuleKindPrefix, Prefix: "110", Bucket: BucketSecurities},
		{Kind: RuleKindPrefix, Prefix: "120", Bucket: BucketReceivables},
		{Kind: RuleKindPrefix, Prefix: "130", Bucket: BucketOtherReceivables},
		{Kind: RuleKindPrefix, Prefix: "140", Bucket: BucketInventory},
		{Kind: RuleKindPrefix, Prefix: "150", Bucket: BucketFixedAssets},
		{Kind: RuleKindPrefix, Prefix: "200", Bucket: BucketShortTermLoans},
		{Kind: RuleKindPrefix, Prefix: "210", Bucket: BucketPayables},
		{Kind: RuleKindPrefix, Prefix: "220", Bucket: BucketOtherPayables},
		{Kind: RuleKindPrefix, Prefix: "250", Bucket: BucketLongTermLiabilities},
		{Kind: RuleKindPrefix, Prefix: "300", Bucket: BucketShareCapital},
		{Kind: RuleKindPrefix, Prefix: "310", Bucket: BucketRetainedEarnings},
		{Kind: RuleKindPrefix, Prefix: "400", Bucket: BucketSalesRevenue},
		{Kind: RuleKindPrefix, Prefix: "410", Bucket: BucketServiceRevenue},
		{Kind: RuleKindPrefix, Prefix: "440", Bucket: BucketOtherRevenue},
		{Kind: RuleKindPrefix, Prefix: "460", Bucket: BucketFinanceIncome},
		{Kind: RuleKindPrefix, Prefix: "470", Bucket: BucketOtherIncome},
		{Kind: RuleKindPrefix, Prefix: "500", Bucket: BucketCostOfSales},
		{Kind: RuleKindPrefix, Prefix: "510", Bucket: BucketManufacturingCosts},
		{Kind: RuleKindPrefix, Prefix: "520", Bucket: BucketAdministrative},
		{Kind: RuleKindPrefix, Prefix: "530", Bucket: BucketResearchDevelopment},
		{Kind: RuleKindPrefix, Prefix: "540", Bucket: BucketSalesExpenses},
		{Kind: RuleKindPrefix, Prefix: "560", Bucket: BucketFinanceExpenses},
		{Kind: RuleKindPrefix, Prefix: "570", Bucket: BucketOtherExpenses},

		{Kind: RuleKindKeyword, Keyword: "salary", Type: ledger.AccountTypeExpense, Bucket: BucketAdministrative},
		{Kind: RuleKindKeyword, Keyword: "wages", Type: ledger.AccountTypeExpense, Bucket: BucketAdministrative},
		{Kind: RuleKindKeyword, Keyword: "rent", Type: ledger.AccountTypeExpense, Bucket: BucketAdministrative},
		{Kind: RuleKindKeyword, Keyword: "marketing", Type: ledger.AccountTypeExpense, Bucket: BucketSalesExpenses},
		{Kind: RuleKindKeyword, Keyword: "advertis", Type: ledger.AccountTypeExpense, Bucket: BucketSalesExpenses},
		{Kind: RuleKindKeyword, Keyword: "research", Type: ledger.AccountTypeExpense, Bucket: BucketResearchDevelopment},
		{Kind: RuleKindKeyword, Keyword: "interest", Type: ledger.AccountTypeExpense, Bucket: BucketFinanceExpenses},
		{Kind: RuleKindKeyword, Keyword: "interest", Type: ledger.AccountTypeRevenue, Bucket: BucketFinanceIncome},
		{Kind: RuleKindKeyword, Keyword: "service", Type: ledger.AccountTypeRevenue, Bucket: BucketServiceRevenue},
		{Kind: RuleKindKeyword, Keyword: "sales", Type: ledger.AccountTypeRevenue, Bucket: BucketSalesRevenue},
		{Kind: RuleKindKeyword, Keyword: "cash", Type: ledger.AccountTypeAsset, Bucket: BucketCash},
		{Kind: RuleKindKeyword, Keyword: "bank", Type: ledger.AccountTypeAsset, Bucket: BucketCash},
		{Kind: RuleKindKeyword, Keyword: "inventory", Type: ledger.AccountTypeAsset, Bucket: BucketInventory},
		{Kind: RuleKindKeyword, Keyword: "receivable", Type: ledger.AccountTypeAsset, Bucket: BucketReceivables},
		{Kind: RuleKindKeyword, Keyword: "equipment", Type: ledger.AccountTypeAsset, Bucket: BucketFixedAssets},
		{Kind: RuleKindKeyword, Keyword: "payable", Type: ledger.AccountTypeLiability, Bucket: BucketPayables},
		{Kind: RuleKindKeyword, Keyword: "loan", Type: ledger.AccountTypeLiability, Bucket: BucketShortTermLoans},
		{Kind: RuleKindKeyword, Keyword: "share capital", Type: ledger.AccountTypeEquity, Bucket: BucketShareCapital},
		{Kind: RuleKindKeyword, Keyword: "retained", Type: ledger.AccountTypeEquity, Bucket: BucketRetainedEarnings},

		{Kind: RuleKindTypeDefault, Type: ledger.AccountTypeRevenue, Bucket: BucketOtherRevenue},
		{Kind: RuleKindTypeDefault, Type: ledger.AccountTypeExpense, Bucket: BucketAdministrative},
		{Kind: RuleKindTypeDefault, Type: ledger.AccountTypeAsset, Bucket: BucketOtherReceivables},
		{Kind: RuleKindTypeDefault, Type: ledger.AccountTypeLiability, Bucket: BucketOtherPayables},
		{Kind: RuleKindTypeDefault, Type: ledger.AccountTypeEquity, Bucket: BucketRetainedEarnings},
	}
}

// LoadRules reads a jurisdiction rule table from a JSON file. The file is an
// ordered array of rules; order is preserved verbatim.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("statutory: read rules: %w", err)
	}
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("statutory: parse rules: %w", err)
	}
	if err := validateRules(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func validateRules(rules []Rule) error {
	if len(rules) == 0 {
		return fmt.Errorf("statutory: rule table is empty")
	}
	rank := map[RuleKind]int{RuleKindPrefix: 0, RuleKindKeyword: 1, RuleKindTypeDefault: 2}
	last := 0
	defaults := make(map[ledger.AccountType]bool)
	for i, rule := range rules {
		r, ok := rank[rule.Kind]
		if !ok {
			return fmt.Errorf("statutory: rule %d: unknown kind %q", i, rule.Kind)
		}
		if r < last {
			return fmt.Errorf("statutory: rule %d: %s rules must not follow %v rules", i, rule.Kind, ruleKindAt(rank, last))
		}
		last = r
		switch rule.Kind {
		case RuleKindPrefix:
			if rule.Prefix == "" {
				return fmt.Errorf("statutory: rule %d: prefix required", i)
			}
		case RuleKindKeyword:
			if rule.Keyword == "" {
				return fmt.Errorf("statutory: rule %d: keyword required", i)
			}
		case RuleKindTypeDefault:
			if rule.Type == "" {
				return fmt.Errorf("statutory: rule %d: type required", i)
			}
			defaults[rule.Type] = true
		}
		if rule.Bucket == "" {
			return fmt.Errorf("statutory: rule %d: bucket required", i)
		}
	}
	for _, t := range []ledger.AccountType{
		ledger.AccountTypeAsset, ledger.AccountTypeLiability, ledger.AccountTypeEquity,
		ledger.AccountTypeRevenue, ledger.AccountTypeExpense,
	} {
		if !defaults[t] {
			return fmt.Errorf("statutory: rule table missing type default for %s", t)
		}
	}
	return nil
}

func ruleKindAt(rank map[RuleKind]int, r int) RuleKind {
	for kind, v := range rank {
		if v == r {
			return kind
		}
	}
	return ""
}
