package provider

import (
	"fmt"
)

// ValidateCapabilities checks if provider capabilities are valid and consistent
func ValidateCapabilities(caps ProviderCapabilities) error {
	if len(caps.MediaTypes) == 0 {
		return fmt.Errorf("provider must support at least one media type")
	}
	for _, key := range caps.IDKeys {
		switch key {
		case IDKeyTMDB, IDKeyTVDB, IDKeyIMDB:
		default:
			return fmt.Errorf("unknown provider id key %q", key)
		}
	}
	return nil
}

// supports reports whether caps list the media type.
func (caps ProviderCapabilities) supports(mediaType MediaType) bool {
	for _, mt := range caps.MediaTypes {
		if mt == mediaType {
			return true
		}
	}
	return false
}

// understands reports whether any of ids is usable by a provider with caps.
func (caps ProviderCapabilities) understands(ids map[string]string) bool {
	for _, key := range caps.IDKeys {
		if ids[key] != "" {
			return true
		}
	}
	return false
}
