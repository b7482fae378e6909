package config

// Key names a configuration tunable.
type Key string

// Stack keys.
const (
	// KeyBindRetryCount is the number of consecutive ports tried when the
	// requested one is in use.
	KeyBindRetryCount Key = "bind-retry-count"
	// KeyBindToWildcard binds a single wildcard socket instead of one socket
	// per interface address.
	KeyBindToWildcard Key = "bind-to-wildcard"

	KeyFirstRetransmitInterval Key = "first-retransmit-interval-ms"
	KeyMaxRetransmitInterval   Key = "max-retransmit-interval-ms"
	KeyMaxRetransmitCount      Key = "max-retransmit-count"

	// KeyKeepTransactionAfterResponse retains finished transactions so late
	// duplicates are recognized.
	KeyKeepTransactionAfterResponse Key = "keep-transaction-after-response"
	// KeyTransactionRetention bounds how long finished transactions and
	// answered inbound requests are remembered.
	KeyTransactionRetention Key = "transaction-retention-ms"

	KeyPropagateReceivedRetransmissions Key = "propagate-received-retransmissions"
	KeyAlwaysSignOutgoing               Key = "always-sign-outgoing"
	KeyRequireMessageIntegrity          Key = "require-message-integrity"
	KeyDisableKeepAlives                Key = "disable-keep-alives"
	KeyKeepAliveInterval                Key = "keep-alive-interval-ms"
)

// Harvest keys.
const (
	KeyHarvestAWSEnabled         Key = "harvest-aws-enabled"
	KeyHarvestAWSForce           Key = "harvest-aws-force"
	KeyHarvestStaticMappings     Key = "harvest-static-mappings"
	KeyHarvestSTUNAddresses      Key = "harvest-stun-addresses"
	KeyHarvestNATPMPEnabled      Key = "harvest-natpmp-enabled"
	KeyHarvestUPnPEnabled        Key = "harvest-upnp-enabled"
	KeyHarvestAllowedAddresses   Key = "harvest-allowed-addresses"
	KeyHarvestBlockedAddresses   Key = "harvest-blocked-addresses"
	KeyHarvestAllowedInterfaces  Key = "harvest-allowed-interfaces"
	KeyHarvestBlockedInterfaces  Key = "harvest-blocked-interfaces"
	KeyHarvestUseIPv6            Key = "harvest-use-ipv6"
	KeyHarvestUseLinkLocal       Key = "harvest-use-link-local"
	KeyHarvestDiscoveryTimeoutMs Key = "harvest-discovery-timeout-ms"
)

// Kind is the declared type of a key's value.
type Kind int

const (
	// KindUnknown is the zero value.
	KindUnknown Kind = iota
	KindString
	KindStringList
	KindInt
	KindBool
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindStringList:
		return "string-list"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// IsValid returns true if the kind is a defined value.
func (k Kind) IsValid() bool {
	return k >= KindString && k <= KindBool
}

// Definition describes a key with its type and compiled-in default.
// Default is the textual form of the default value.
type Definition struct {
	Key         Key
	Kind        Kind
	Default     string
	Description string
}

// Definitions lists every recognized key.
var Definitions = []Definition{
	{KeyBindRetryCount, KindInt, "50", "max rebind attempts on port-in-use"},
	{KeyBindToWildcard, KindBool, "false", "bind the wildcard address instead of interface addresses"},
	{KeyFirstRetransmitInterval, KindInt, "100", "initial retransmission delay (ms)"},
	{KeyMaxRetransmitInterval, KindInt, "1600", "retransmission delay ceiling (ms)"},
	{KeyKeepTransactionAfterResponse, KindBool, "false", "retain finished transactions to detect late duplicates"},
	{KeyTransactionRetention, KindInt, "16000", "retention window for finished transactions (ms)"},
	{KeyMaxRetransmitCount, KindInt, "6", "retransmissions before timeout"},
	{KeyPropagateReceivedRetransmissions, KindBool, "false", "deliver duplicate inbound requests to the application"},
	{KeyAlwaysSignOutgoing, KindBool, "false", "add integrity and fingerprint to every outbound message"},
	{KeyRequireMessageIntegrity, KindBool, "false", "reject inbound messages without integrity"},
	{KeyDisableKeepAlives, KindBool, "false", "suppress keep-alive indications"},
	{KeyKeepAliveInterval, KindInt, "15000", "keep-alive period (ms)"},

	{KeyHarvestAWSEnabled, KindBool, "true", "enable the cloud metadata strategy"},
	{KeyHarvestAWSForce, KindBool, "false", "assume an EC2 host without probing"},
	{KeyHarvestStaticMappings, KindStringList, "", "local[:port]=public[:port][@name] entries separated by ';'"},
	{KeyHarvestSTUNAddresses, KindStringList, "", "STUN servers separated by ','"},
	{KeyHarvestNATPMPEnabled, KindBool, "false", "enable the NAT-PMP strategy"},
	{KeyHarvestUPnPEnabled, KindBool, "false", "enable the UPnP IGD strategy"},
	{KeyHarvestAllowedAddresses, KindStringList, "", "only harvest these addresses (';')"},
	{KeyHarvestBlockedAddresses, KindStringList, "", "never harvest these addresses (';')"},
	{KeyHarvestAllowedInterfaces, KindStringList, "", "only harvest these interfaces (';')"},
	{KeyHarvestBlockedInterfaces, KindStringList, "", "never harvest these interfaces (';')"},
	{KeyHarvestUseIPv6, KindBool, "true", "include IPv6 host candidates"},
	{KeyHarvestUseLinkLocal, KindBool, "false", "include link-local host candidates"},
	{KeyHarvestDiscoveryTimeoutMs, KindInt, "500", "connect timeout for discovery requests (ms)"},
}

// Lookup returns the definition for key.
func Lookup(key Key) (Definition, bool) {
	for _, d := range Definitions {
		if d.Key == key {
			return d, true
		}
	}
	return Definition{}, false
}
