package tracker

import "strings"

// sniffAgent fills Agent/Platform from the UA string when the caller did
// not resolve them through a capability database. Deliberately coarse: the
// values only feed unhashed actor keys and visitor row labelling.
func sniffAgent(rc *RequestContext) {
	ua := strings.ToLower(rc.UserAgent)
	if rc.Agent == "" {
		switch {
		case strings.Contains(ua, "edg/"), strings.Contains(ua, "edge/"):
			rc.Agent = "Edge"
		case strings.Contains(ua, "opr/"), strings.Contains(ua, "opera"):
			rc.Agent = "Opera"
		case strings.Contains(ua, "firefox/"):
			rc.Agent = "Firefox"
		case strings.Contains(ua, "chrome/"):
			rc.Agent = "Chrome"
		case strings.Contains(ua, "safari/"):
			rc.Agent = "Safari"
		case ua != "":
			rc.Agent = "Other"
		}
	}
	if rc.Platform == "" {
		switch {
		case strings.Contains(ua, "android"):
			rc.Platform = "Android"
		case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
			rc.Platform = "iOS"
		case strings.Contains(ua, "windows"):
			rc.Platform = "Windows"
		case strings.Contains(ua, "mac os"):
			rc.Platform = "macOS"
		case strings.Contains(ua, "linux"):
			rc.Platform = "Linux"
		case ua != "":
			rc.Platform = "Other"
		}
	}
}
