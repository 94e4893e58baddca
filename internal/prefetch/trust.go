package prefetch

import (
	"net/url"
	"strings"
)

// TrustTier classifies a domain's base credibility band (§4.8).
type TrustTier string

const (
	TierGovernment      TrustTier = "government"
	TierPublicOrg       TrustTier = "public_org"
	TierEncyclopedia    TrustTier = "encyclopedia"
	TierMajorNews       TrustTier = "major_news"
	TierSpecializedNews TrustTier = "specialized_news"
	TierUnknown         TrustTier = "unknown"
	TierPlatform        TrustTier = "platform"
)

var tierBaseScore = map[TrustTier]float64{
	TierGovernment:      0.96,
	TierPublicOrg:       0.90,
	TierEncyclopedia:    0.82,
	TierMajorNews:       0.80,
	TierSpecializedNews: 0.72,
	TierUnknown:         0.55,
	TierPlatform:        0.45,
}

// TrustResolution is the {domain, tier, score} triple §4.8 names.
type TrustResolution struct {
	Domain string
	Tier   TrustTier
	Score  float64
}

// domainOverrides lets operators pin specific domains to a tier without
// waiting on a suffix rule; keyed by registrable-ish domain, lowercase.
var domainOverrides = map[string]TrustTier{}

// SetDomainOverride pins a domain (e.g. "example.gov.uk") to a tier,
// bypassing the suffix classifier below.
func SetDomainOverride(domain string, tier TrustTier) {
	domainOverrides[strings.ToLower(domain)] = tier
}

var govSuffixes = []string{".gov", ".go.kr", ".gov.uk", ".europa.eu"}
var publicOrgSuffixes = []string{".un.org", ".who.int", ".org"}
var encyclopediaSuffixes = []string{"wikipedia.org", "britannica.com"}
var majorNewsSuffixes = []string{
	"reuters.com", "apnews.com", "bbc.com", "bbc.co.uk", "nytimes.com",
	"washingtonpost.com", "yna.co.kr", "chosun.com", "joongang.co.kr",
	"hani.co.kr", "khan.co.kr",
}
var platformSuffixes = []string{
	"twitter.com", "x.com", "facebook.com", "instagram.com", "tiktok.com",
	"youtube.com", "reddit.com", "blog.naver.com", "tistory.com",
}

// ResolveTrust classifies a source by domain suffix, forcing the
// encyclopedia tier for WIKI source types per §4.8.
func ResolveTrust(rawURL, sourceType string) TrustResolution {
	domain := domainFromURL(rawURL)

	if strings.EqualFold(sourceType, "WIKI") {
		return TrustResolution{Domain: domain, Tier: TierEncyclopedia, Score: tierBaseScore[TierEncyclopedia]}
	}
	if tier, ok := domainOverrides[domain]; ok {
		return TrustResolution{Domain: domain, Tier: tier, Score: tierBaseScore[tier]}
	}

	tier := classifyTier(domain)
	return TrustResolution{Domain: domain, Tier: tier, Score: tierBaseScore[tier]}
}

func classifyTier(domain string) TrustTier {
	switch {
	case hasAnySuffix(domain, govSuffixes):
		return TierGovernment
	case hasAnySuffix(domain, encyclopediaSuffixes):
		return TierEncyclopedia
	case hasAnySuffix(domain, majorNewsSuffixes):
		return TierMajorNews
	case hasAnySuffix(domain, platformSuffixes):
		return TierPlatform
	case hasAnySuffix(domain, publicOrgSuffixes):
		return TierPublicOrg
	case strings.Contains(domain, "news") || strings.HasSuffix(domain, ".news"):
		return TierSpecializedNews
	default:
		return TierUnknown
	}
}

func hasAnySuffix(domain string, suffixes []string) bool {
	for _, s := range suffixes {
		if domain == strings.TrimPrefix(s, ".") || strings.HasSuffix(domain, s) {
			return true
		}
	}
	return false
}

func domainFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(parsed.Hostname())
}
