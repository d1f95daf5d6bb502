package classify

import (
	"context"
	"regexp"

	"github.com/hazyhaar/darkmark/block"
)

// rulePattern pairs a vocabulary pattern with the dark-pattern type it
// signals and a base probability.
type rulePattern struct {
	re    *regexp.Regexp
	typ   string
	prob  float64
	claim string
}

var rulePatterns = []rulePattern{
	{regexp.MustCompile(`(?i)only \d+ left|남았|마감 임박|selling fast|재고 부족`), "scarcity", 0.85, "claims limited stock"},
	{regexp.MustCompile(`(?i)limited time|한정|지금 바로|ends (today|soon)|마지막 기회|hurry`), "urgency", 0.8, "manufactures time pressure"},
	{regexp.MustCompile(`(?i)\d+ (people|others) (are )?(viewing|bought)|명이 보고|구매했습니다`), "social-proof", 0.7, "cites unverifiable activity"},
	{regexp.MustCompile(`(?i)no thanks.*(pay full|miss out)|혜택을 포기`), "misdirection", 0.75, "shames the decline option"},
	{regexp.MustCompile(`(?i)자동 (갱신|결제)|auto.?renew|automatically (renew|charge)`), "sneaking", 0.7, "discloses recurring charge obliquely"},
	{regexp.MustCompile(`(?i)동의해야|must (accept|agree)|필수 동의`), "forced-action", 0.75, "conditions access on consent"},
}

// RuleClassifier is a deterministic keyword classifier used when no model
// endpoint is configured, and in tests.
type RuleClassifier struct{}

// Classify scores each block against the fixed vocabulary. Blocks with no
// hit are omitted.
func (RuleClassifier) Classify(_ context.Context, blocks []block.Block) ([]Row, error) {
	var rows []Row
	for i := range blocks {
		text := textFor(&blocks[i])
		for _, rp := range rulePatterns {
			if rp.re.MatchString(text) {
				rows = append(rows, Row{
					Text:          blocks[i].PlainText,
					Translated:    blocks[i].TranslatedPlainText,
					IsDarkPattern: true,
					Probability:   rp.prob,
					Type:          rp.typ,
					Predicate:     rp.claim,
				})
				break
			}
		}
	}
	return rows, nil
}
