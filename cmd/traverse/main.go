// traverse runs a STUN Binding server and inspects how the host is seen
// from outside its NAT.
//
// Usage:
//
//	traverse [--config file.yaml] [--log-level level] [--set key=value] <command>
//
// Commands:
//
//	serve      answer Binding requests, optionally advertised over mDNS
//	binding    run one Binding transaction against a server
//	harvest    list host candidates and the addresses they map to
//	discover   find STUN or TURN servers over mDNS or DNS SRV
//	config     show every setting and its effective value
//
// Settings are read from --set flags, then TRAVERSE_* environment
// variables, then the configuration file.
//
// Example:
//
//	traverse --set harvest-stun-addresses=stun.example.org harvest
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
