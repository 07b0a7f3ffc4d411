package ingest

import "strings"

const googleNewsDomain = "news.google.com"

// Source tiering. Classification is a substring match so subdomains
// (blogs.reuters.com) land in their parent's tier. Tier 3 and tier 5 are
// rejected at ingestion; the rest feed the authority term in ranking.
var tierDomains = [4][]string{
	// Tier 1: wire services and national outlets.
	{
		"reuters.com", "apnews.com", "bloomberg.com", "wsj.com",
		"nytimes.com", "washingtonpost.com", "ft.com", "bbc.com",
		"npr.org", "theguardian.com",
	},
	// Tier 2: business and tech majors.
	{
		"techcrunch.com", "theverge.com", "wired.com", "arstechnica.com",
		"cnbc.com", "forbes.com", "businessinsider.com", "axios.com",
		"theinformation.com", "venturebeat.com", "zdnet.com",
		"engadget.com", "semafor.com",
	},
	// Tier 3: regional and trade press.
	{
		"fiercetelecom.com", "lightreading.com", "rcrwireless.com",
		"telecoms.com", "sdxcentral.com", "crn.com", "channelfutures.com",
		"eweek.com", "techradar.com", "tomshardware.com",
	},
	// Tier 4: corporate newsrooms.
	{
		"verizon.com", "accenture.com", "openai.com", "anthropic.com",
		"ai.meta.com", "blogs.microsoft.com", "blog.google",
		"aws.amazon.com", "blogs.nvidia.com", "newsroom.ibm.com",
	},
}

// SourceTier classifies a domain 1..5. Google News links that kept their
// aggregator domain count as tier 4: curated, but the publisher is unknown.
func SourceTier(domain string) int {
	if domain == googleNewsDomain {
		return 4
	}
	for i, list := range tierDomains {
		for _, d := range list {
			if strings.Contains(domain, d) {
				return i + 1
			}
		}
	}
	return 5
}

// Authority is the ranking weight for a domain's tier. Google News sits
// between the corporate tier and unknown.
func Authority(domain string) float64 {
	if domain == googleNewsDomain {
		return 0.50
	}
	switch SourceTier(domain) {
	case 1:
		return 1.0
	case 2:
		return 0.85
	case 3:
		return 0.70
	case 4:
		return 0.55
	default:
		return 0.40
	}
}
