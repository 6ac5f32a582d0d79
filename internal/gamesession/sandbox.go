package gamesession

import "strings"

// Policy tells the shell how to sandbox the game iframe. Attribute is the
// sandbox allow-list; an empty Attribute with Sandboxed=false means the
// iframe gets no sandbox attribute at all.
type Policy struct {
	Sandboxed bool   `json:"sandboxed"`
	Attribute string `json:"attribute,omitempty"`
}

// sandboxAllowList is the explicit allow-list applied to ordinary vendors.
const sandboxAllowList = "allow-scripts allow-same-origin allow-forms allow-popups allow-pointer-lock allow-top-navigation"

// relaxedVendors stream live video over WebSocket and break under any
// sandbox attribute. Giving them (and mobile user agents) an unsandboxed
// frame is a deliberate compatibility/security trade-off; do not "fix" it
// by sandboxing everything.
var relaxedVendors = map[string]bool{
	"EVOLUTION": true,
	"AG":        true,
	"WM":        true,
	"DG":        true,
	"SEXY":      true,
}

var mobileUASignals = []string{"android", "iphone", "ipad", "mobile"}

// PolicyFor picks the sandbox policy for a launch: mobile user agents and
// live-video vendors run unsandboxed, everything else gets the allow-list.
func PolicyFor(userAgent, platformCode string) Policy {
	if relaxedVendors[strings.ToUpper(platformCode)] {
		return Policy{Sandboxed: false}
	}
	lower := strings.ToLower(userAgent)
	for _, signal := range mobileUASignals {
		if strings.Contains(lower, signal) {
			return Policy{Sandboxed: false}
		}
	}
	return Policy{Sandboxed: true, Attribute: sandboxAllowList}
}
