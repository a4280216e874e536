package apiclient

import "strings"

const idSegment = "{id}"

// staticSegments are the fixed words of backend paths below /api/<resource>/.
// Any other segment there is an identifier or slug.
var staticSegments = map[string]struct{}{
	"add":                 {},
	"cancel":              {},
	"category":            {},
	"cod":                 {},
	"create":              {},
	"create-order":        {},
	"featured":            {},
	"google":              {},
	"list":                {},
	"me":                  {},
	"my-orders":           {},
	"resend-otp":          {},
	"set-default":         {},
	"signin":              {},
	"signup":              {},
	"update":              {},
	"verify-email":        {},
	"verify-email-change": {},
	"verify-payment":      {},
}

// RouteTemplate replaces the identifiers in a backend path with {id}, so
// "/api/order/o1/cancel" becomes "/api/order/{id}/cancel". The query string is dropped.
func RouteTemplate(p string) string {
	p, _, _ = strings.Cut(p, "?")
	segments := strings.Split(strings.Trim(p, "/"), "/")
	if len(segments) == 1 && segments[0] == "" {
		return "/"
	}
	for i := 2; i < len(segments); i++ {
		if _, ok := staticSegments[segments[i]]; !ok {
			segments[i] = idSegment
		}
	}
	return "/" + strings.Join(segments, "/")
}
