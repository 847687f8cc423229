package tracking

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/ignite/newsletter/internal/domain"
)

var hrefRegex = regexp.MustCompile(`href="(https?://[^"]+)"`)

// Injector rewrites outbound HTML with an open pixel and tracked links.
type Injector struct {
	signer  *Signer
	baseURL string
	ttlDays int
}

// NewInjector creates an injector issuing URLs under baseURL.
func NewInjector(signer *Signer, baseURL string, ttlDays int) *Injector {
	return &Injector{signer: signer, baseURL: strings.TrimRight(baseURL, "/"), ttlDays: ttlDays}
}

// Inject applies the tracking the campaign has not disabled.
func (in *Injector) Inject(body string, settings domain.TrackingSettings, subscriberID string) string {
	if !settings.ClickTrackingDisabled {
		body = in.rewriteLinks(body, settings.ID, subscriberID)
	}
	if !settings.OpenTrackingDisabled {
		pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" style="display:none;" alt="" />`,
			in.signer.CreateOpenURL(in.baseURL, settings.ID, subscriberID, in.ttlDays))
		if i := strings.LastIndex(body, "</body>"); i >= 0 {
			body = body[:i] + pixel + body[i:]
		} else {
			body += pixel
		}
	}
	return body
}

func (in *Injector) rewriteLinks(body, campaignID, subscriberID string) string {
	trackPrefix := in.baseURL + "/track/"
	return hrefRegex.ReplaceAllStringFunc(body, func(m string) string {
		target := html.UnescapeString(hrefRegex.FindStringSubmatch(m)[1])
		if strings.HasPrefix(target, trackPrefix) {
			return m
		}
		tracked := in.signer.CreateTrackingURL(in.baseURL, campaignID, subscriberID, LinkID(target), in.ttlDays)
		return `href="` + tracked + "?url=" + url.QueryEscape(target) + `"`
	})
}
