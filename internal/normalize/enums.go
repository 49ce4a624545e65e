package normalize

import "strings"

// enumMappings rewrites common spellings of enum-like values to a canonical
// display string. Lookup tries the field-specific table first, then every
// table as a general fallback.
var enumMappings = map[string]map[string]string{
	"auth_type": {
		"oauth2":         "OAuth 2.0",
		"oauth 2":        "OAuth 2.0",
		"oauth2.0":       "OAuth 2.0",
		"oauth 2.0":      "OAuth 2.0",
		"basic auth":     "Basic Authentication",
		"basic":          "Basic Authentication",
		"api key":        "API Key",
		"apikey":         "API Key",
		"bearer":         "Bearer Token",
		"bearer token":   "Bearer Token",
		"jwt":            "JWT",
		"json web token": "JWT",
	},
	"protocol": {
		"http":      "HTTP",
		"https":     "HTTPS",
		"websocket": "WebSocket",
		"ws":        "WebSocket",
		"wss":       "WebSocket Secure",
		"rest":      "REST",
		"graphql":   "GraphQL",
		"grpc":      "gRPC",
		"soap":      "SOAP",
	},
	"tier": {
		"free":         "Free",
		"basic":        "Basic",
		"pro":          "Pro",
		"professional": "Pro",
		"premium":      "Premium",
		"enterprise":   "Enterprise",
		"business":     "Business",
	},
}

// enumCategories fixes the fallback iteration order so canonicalization is
// deterministic when a spelling appears in more than one table ("basic" is
// both an auth type and a tier).
var enumCategories = []string{"auth_type", "protocol", "tier"}

// canonicalizeEnum returns the canonical display string for a value, or the
// value unchanged when no mapping applies.
func canonicalizeEnum(value, fieldID string) string {
	lower := strings.ToLower(value)

	if m, ok := enumMappings[fieldID]; ok {
		if canonical, ok := m[lower]; ok {
			return canonical
		}
	}
	for _, category := range enumCategories {
		if canonical, ok := enumMappings[category][lower]; ok {
			return canonical
		}
	}
	return value
}
