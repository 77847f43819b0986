// Package registration pulls in every built-in tool package so their init()
// registrations run. Import it for side effects from any composition root.
package registration

import (
	_ "github.com/netopsd/netopsd/internal/tools/connectivity"
	_ "github.com/netopsd/netopsd/internal/tools/dnstools"
	_ "github.com/netopsd/netopsd/internal/tools/httptools"
	_ "github.com/netopsd/netopsd/internal/tools/scan"
	_ "github.com/netopsd/netopsd/internal/tools/sockets"
	_ "github.com/netopsd/netopsd/internal/tools/sysmon"
)
