package reconciliation

import (
	"regexp"
	"strings"
)

const UnidentifiedClient = "unidentified client"

type ClientType string

const (
	ClientTypeBoth      ClientType = "both"
	ClientTypeFanpage   ClientType = "fanpage"
	ClientTypeInstagram ClientType = "instagram"
	ClientTypeUnknown   ClientType = "unknown"
)

// one or more consecutive words that start with an uppercase letter
var clientNamePattern = regexp.MustCompile(`\p{Lu}[\p{L}\p{N}&'.-]*(?:\s+\p{Lu}[\p{L}\p{N}&'.-]*)*`)

// ExtractClientName labels a campaign with its client. It tries the campaign name, then the page name,
// and never returns an empty string.
func ExtractClientName(campaignName, pageName string) string {
	if name := strings.TrimSpace(clientNamePattern.FindString(campaignName)); name != "" {
		return name
	}
	if page := strings.TrimSpace(pageName); page != "" {
		return page
	}
	return UnidentifiedClient
}

// ClientTypeOf derives the client type from the identifier sets that scoped the detection run.
func ClientTypeOf(pageIDs, instagramIDs []string) ClientType {
	hasPages := hasAny(pageIDs)
	hasInstagram := hasAny(instagramIDs)

	switch {
	case hasPages && hasInstagram:
		return ClientTypeBoth
	case hasPages:
		return ClientTypeFanpage
	case hasInstagram:
		return ClientTypeInstagram
	default:
		return ClientTypeUnknown
	}
}

func hasAny(ids []string) bool {
	for _, id := range ids {
		if strings.TrimSpace(id) != "" {
			return true
		}
	}
	return false
}
