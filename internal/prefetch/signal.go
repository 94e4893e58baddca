package prefetch

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// HTMLSignals is the §4.7 per-page credibility analysis. Grounded on
// the teacher's renderdetect.go DOM-walking approach (there used to
// decide whether a page needs headless rendering); here the same walk
// style is repurposed to look for byline/date/correction/reference/
// anonymous-source/clickbait markers instead of SPA framework markers.
type HTMLSignals struct {
	BylinePresent           bool
	DatePresent             bool
	CorrectionNoticePresent bool
	ReferenceLinkCount      int
	ReferenceLinkQuality    float64
	AnonymousSourceRatio    float64
	ClickbaitPattern        bool
	Score                   float64
	FetchOK                 bool
}

var datePattern = regexp.MustCompile(`\b\d{4}[-./]\d{1,2}[-./]\d{1,2}\b`)
var bylineKeywords = []string{"기자", "reporter", "by "}
var bylineClassHints = []string{"byline", "author"}
var correctionKeywords = []string{"정정", "correction", "corrected", "바로잡습니다"}
var anonymousPhrases = []string{"관계자에 따르면", "익명을 요구", "informed sources", "sources familiar with", "a person with knowledge"}
var quotationHints = []string{"\"", "“", "라고 말했다", "said"}
var clickbaitTerms = []string{
	"shocking", "you won't believe", "경악", "충격", "단독", "속보", "믿을 수 없는",
}

// clickbaitThinBodyWords is the word-count floor below which a
// sensational title is treated as unsupported by the body (§4.7).
const clickbaitThinBodyWords = 150

// ExtractHTMLSignals computes the §4.7 credibility signals for a
// fetched page. On empty input or a parse failure it returns the
// spec's neutral fallback: score 0.5, fetch_ok=false.
func ExtractHTMLSignals(rawHTML []byte, title, bodyText string) HTMLSignals {
	if len(bytes.TrimSpace(rawHTML)) == 0 {
		return HTMLSignals{Score: 0.5, FetchOK: false}
	}
	node, err := html.Parse(bytes.NewReader(rawHTML))
	if err != nil {
		return HTMLSignals{Score: 0.5, FetchOK: false}
	}

	sig := HTMLSignals{FetchOK: true}
	sig.BylinePresent = detectByline(node, bodyText)
	sig.DatePresent = detectDate(node, bodyText)
	sig.CorrectionNoticePresent = containsAny(bodyText, correctionKeywords)

	refCount, refQuality := analyzeReferenceLinks(node)
	sig.ReferenceLinkCount = refCount
	sig.ReferenceLinkQuality = refQuality

	sig.AnonymousSourceRatio = anonymousSourceRatio(bodyText)
	sig.ClickbaitPattern = containsAny(strings.ToLower(title), clickbaitTerms) && len(strings.Fields(bodyText)) < clickbaitThinBodyWords

	score := 0.5
	if sig.BylinePresent {
		score += 0.08
	}
	if sig.DatePresent {
		score += 0.08
	}
	if sig.CorrectionNoticePresent {
		score += 0.06
	}
	score += 0.20 * sig.ReferenceLinkQuality
	score -= 0.14 * sig.AnonymousSourceRatio
	if sig.ClickbaitPattern {
		score -= 0.12
	}
	sig.Score = clip01(score)
	return sig
}

func detectByline(node *html.Node, bodyText string) bool {
	found := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found {
			return
		}
		if n.Type == html.ElementNode {
			if n.Data == "meta" && strings.EqualFold(attrVal(n, "name"), "author") && attrVal(n, "content") != "" {
				found = true
				return
			}
			class := strings.ToLower(attrVal(n, "class"))
			for _, hint := range bylineClassHints {
				if strings.Contains(class, hint) {
					found = true
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	if found {
		return true
	}
	return containsAny(strings.ToLower(bodyText), bylineKeywords)
}

func detectDate(node *html.Node, bodyText string) bool {
	found := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found {
			return
		}
		if n.Type == html.ElementNode {
			if n.Data == "time" {
				found = true
				return
			}
			if n.Data == "meta" {
				name := strings.ToLower(attrVal(n, "property")) + strings.ToLower(attrVal(n, "name"))
				if strings.Contains(name, "published_time") || strings.Contains(name, "modified_time") || name == "date" {
					found = true
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	if found {
		return true
	}
	return datePattern.MatchString(bodyText)
}

// analyzeReferenceLinks counts outbound <a href> links and scores what
// fraction resolve to a known high-trust tier (§4.7 reference_link_quality_score).
func analyzeReferenceLinks(node *html.Node) (count int, quality float64) {
	highTrust := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href := attrVal(n, "href")
			if strings.HasPrefix(href, "http") {
				count++
				tier := classifyTier(domainFromURL(href))
				if tier == TierGovernment || tier == TierMajorNews || tier == TierPublicOrg || tier == TierEncyclopedia {
					highTrust++
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	if count == 0 {
		return 0, 0
	}
	return count, float64(highTrust) / float64(count)
}

func anonymousSourceRatio(bodyText string) float64 {
	lower := strings.ToLower(bodyText)
	anon := countOccurrences(lower, anonymousPhrases)
	quoted := countOccurrences(lower, quotationHints)
	if quoted == 0 {
		if anon == 0 {
			return 0
		}
		return 1
	}
	ratio := float64(anon) / float64(quoted)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

func countOccurrences(text string, phrases []string) int {
	total := 0
	for _, p := range phrases {
		total += strings.Count(text, strings.ToLower(p))
	}
	return total
}

func containsAny(text string, terms []string) bool {
	lower := strings.ToLower(text)
	for _, t := range terms {
		if strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
