package httprouter

import "crypto/tls"

// insecureTLSConfig disables certificate verification. Used exclusively by
// the federated (peertube) adapter's dedicated session: the federation
// includes self-signed instances, and spec.md §4.E.3 states this is a
// documented trade-off of the domain, not an oversight.
func insecureTLSConfig() *tls.Config {
	return &tls.Config{InsecureSkipVerify: true} //nolint:gosec // documented trade-off, spec.md §4.E.3
}
