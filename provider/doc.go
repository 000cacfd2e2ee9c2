// Package provider groups runtime.ExternalCaller implementations backed by
// vendor SDKs. Each subpackage adapts one provider's API to
// runtime.ExternalRequest and reports token usage as input and output
// units, which the runtime prices with its PriceTable.
package provider
