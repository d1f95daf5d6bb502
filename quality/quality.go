// Package quality decides whether an extracted block is meaningful enough to
// keep. It rejects boilerplate navigation labels, bare dates/times/contacts,
// numeric noise, and stock/weather widget fragments, in Korean and English.
package quality

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/hazyhaar/darkmark/block"
)

// Config holds the heuristic thresholds. They are tunables with no derived
// semantics; defaults reproduce the shipped behaviour.
type Config struct {
	MinPlainLen     int     // reject shorter blocks outright
	DigitRatioMax   float64 // reject when digit ratio reaches this
	SpecialRatioMax float64 // reject when special-char ratio exceeds this
	ShortBlockLen   int     // blocks at or under this need a keyword match
	WidgetNumberMin int     // numeric tokens required for widget suppression
}

func (c *Config) defaults() {
	if c.MinPlainLen <= 0 {
		c.MinPlainLen = 4
	}
	if c.DigitRatioMax <= 0 {
		c.DigitRatioMax = 0.8
	}
	if c.SpecialRatioMax <= 0 {
		c.SpecialRatioMax = 0.5
	}
	if c.ShortBlockLen <= 0 {
		c.ShortBlockLen = 10
	}
	if c.WidgetNumberMin <= 0 {
		c.WidgetNumberMin = 2
	}
}

// Filter applies the block acceptance heuristics.
type Filter struct {
	cfg Config
}

// New creates a Filter. The zero Config yields the default thresholds.
func New(cfg Config) *Filter {
	cfg.defaults()
	return &Filter{cfg: cfg}
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{1,2}\s*월\s*\d{1,2}\s*일`),
	regexp.MustCompile(`\d{4}\s*[./-]\s*\d{1,2}\s*[./-]\s*\d{1,2}`),
	regexp.MustCompile(`\d{1,2}\s*[./-]\s*\d{1,2}\s*[./-]\s*\d{2,4}`),
}

var (
	digitRe   = regexp.MustCompile(`\d`)
	specialRe = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`)
	numberRe  = regexp.MustCompile(`[\d%]+`)
)

var excludePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(home|로그인|login|sign up|회원가입|sign in|logout|로그아웃|menu|메뉴|search|검색|about|소개|contact|연락처|click here|click|here|more|더보기|view|보기|close|닫기|next|다음|previous|이전|back|뒤로|skip|건너뛰기)$`),
	regexp.MustCompile(`^\d{4}[-/]\d{1,2}[-/]\d{1,2}$`),
	regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2})?$`),
	regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`),
	regexp.MustCompile(`(?i)^https?://.+`),
	regexp.MustCompile(`^[\d\s\-()+]+$`),
	regexp.MustCompile(`^[\w가-힣]{1,2}$`),
	regexp.MustCompile(`^[a-zA-Z0-9]$`),
}

// keywordPatterns gate short blocks: urgency, discount, compulsion, consent,
// subscription, pricing, and promotional-benefit vocabulary. Substring
// semantics, not word-boundary: ASCII \b never fires inside Hangul runs.
var keywordPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)limited|한정|제한|today only|지금|now|마감|마지막|stock|재고|남았|remaining`),
	regexp.MustCompile(`(?i)discount|할인|sale|세일|save|off|무료 배송|buy now|구매|order|주문|checkout|결제`),
	regexp.MustCompile(`(?i)must|해야|필수|mandatory|exclusive|독점|only|오직`),
	regexp.MustCompile(`(?i)terms|조건|동의|accept|consent|승인`),
	regexp.MustCompile(`(?i)sign up|가입|register|등록|subscribe|구독|membership|회원`),
	regexp.MustCompile(`(?i)price|가격|cost|비용|fee|수수료|charge|요금`),
	regexp.MustCompile(`(?i)benefit|혜택|promotion|프로모션|offer|제안|deal|특별`),
}

var stockKeywords = []string{
	"주식", "코스피", "코스닥", "나스닥", "지수", "증권", "상승", "하락",
	"거래량", "거래대금", "종목", "선물", "옵션", "포인트", "환율",
	"삼성전자", "sk하이닉스", "카카오", "네이버", "lg에너지", "시가", "종가", "코스피200",
}

var weatherKeywords = []string{
	"기온", "맑음", "흐림", "비", "눈", "강수", "미세", "초미세", "먼지",
	"습도", "체감", "날씨", "구름", "풍속", "기상", "예보", "최저", "최고",
	"자외선", "오존", "일출", "일몰", "강우", "황사",
}

// ShouldKeep reports whether a block survives the quality heuristics.
func (f *Filter) ShouldKeep(b *block.Block) bool {
	if b == nil {
		return false
	}
	return f.ShouldKeepText(b.Text)
}

// ShouldKeepText is the string form of ShouldKeep, accepting either
// token-joined or plain text.
func (f *Filter) ShouldKeepText(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}

	plain := strings.Join(strings.Fields(block.Plain(trimmed)), " ")
	if plain == "" {
		return false
	}

	for _, pat := range datePatterns {
		if pat.MatchString(plain) {
			return false
		}
	}

	runes := []rune(plain)
	if len(runes) < f.cfg.MinPlainLen {
		return false
	}

	digits := len(digitRe.FindAllString(plain, -1))
	if float64(digits)/float64(len(runes)) >= f.cfg.DigitRatioMax {
		return false
	}

	specials := len(specialRe.FindAllString(plain, -1))
	if float64(specials)/float64(len(runes)) > f.cfg.SpecialRatioMax {
		return false
	}

	if !hasMeaningfulChar(plain) {
		return false
	}

	words := strings.Fields(plain)
	if len(words) == 1 && len([]rune(words[0])) <= 3 {
		return false
	}

	for _, pat := range excludePatterns {
		if pat.MatchString(plain) {
			return false
		}
	}

	if len(runes) <= f.cfg.ShortBlockLen {
		matched := false
		for _, pat := range keywordPatterns {
			if pat.MatchString(plain) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	numberTokens := numberRe.FindAllString(plain, -1)
	if len(numberTokens) >= f.cfg.WidgetNumberMin {
		lower := strings.ToLower(plain)
		if containsAny(lower, stockKeywords) || containsAny(lower, weatherKeywords) {
			return false
		}
	}

	return true
}

// hasMeaningfulChar reports whether anything remains after stripping digits,
// punctuation, and whitespace, i.e. the block has at least one letter.
func hasMeaningfulChar(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
