package prefetch

import "testing"

func TestResolveTrustGovernmentDomain(t *testing.T) {
	res := ResolveTrust("https://www.whitehouse.gov/briefing", "WEB_URL")
	if res.Tier != TierGovernment {
		t.Fatalf("expected government tier, got %v", res.Tier)
	}
	if res.Score != tierBaseScore[TierGovernment] {
		t.Fatalf("unexpected score %v", res.Score)
	}
}

func TestResolveTrustForcesEncyclopediaForWiki(t *testing.T) {
	res := ResolveTrust("https://blog.naver.com/some-post", "WIKI")
	if res.Tier != TierEncyclopedia {
		t.Fatalf("expected WIKI source type to force encyclopedia tier, got %v", res.Tier)
	}
}

func TestResolveTrustUnknownDomain(t *testing.T) {
	res := ResolveTrust("https://random-personal-site.example", "WEB_URL")
	if res.Tier != TierUnknown {
		t.Fatalf("expected unknown tier, got %v", res.Tier)
	}
}

func TestResolveTrustDomainOverride(t *testing.T) {
	SetDomainOverride("special-source.example", TierMajorNews)
	res := ResolveTrust("https://special-source.example/a", "WEB_URL")
	if res.Tier != TierMajorNews {
		t.Fatalf("expected override tier major_news, got %v", res.Tier)
	}
}

func TestResolveTrustPlatformDomain(t *testing.T) {
	res := ResolveTrust("https://www.reddit.com/r/news/comments/abc", "WEB_URL")
	if res.Tier != TierPlatform {
		t.Fatalf("expected platform tier, got %v", res.Tier)
	}
}
