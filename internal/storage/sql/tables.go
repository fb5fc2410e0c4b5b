package sql

import "github.com/ncrq/authguard/internal/storage"

// tableNames maps a storage model name to its SQL table, the way the
// teacher's storage/sql package hardcodes one table per storage.Storage
// resource.
var tableNames = map[string]string{
	storage.ModelUser:             "users",
	storage.ModelAccount:          "accounts",
	storage.ModelSession:          "sessions",
	storage.ModelVerification:     "verifications",
	storage.ModelTwoFactor:        "two_factors",
	storage.ModelTrustedDevice:    "trusted_devices",
	storage.ModelOAuthClient:      "oauth_clients",
	storage.ModelOAuthAccessToken: "oauth_access_tokens",
	storage.ModelOAuthRefresh:     "oauth_refresh_tokens",
	storage.ModelOAuthConsent:     "oauth_consents",
	storage.ModelDeviceCode:       "device_codes",
	storage.ModelCibaRequest:      "ciba_requests",
}

// jsonColumns lists, per model, the columns storing a JSON-encoded
// slice (redirect URIs, scopes, grant types, ...) that must be
// marshaled on write and unmarshaled back to []interface{} on read so
// InternalAdapter's fromRecord sees the shape it expects.
var jsonColumns = map[string]map[string]bool{
	storage.ModelOAuthClient: {
		"redirect_uris":  true,
		"scopes":         true,
		"grant_types":    true,
		"response_types": true,
	},
	storage.ModelOAuthAccessToken: {"scopes": true},
	storage.ModelOAuthRefresh:     {"scopes": true},
	storage.ModelOAuthConsent:     {"scopes": true},
	storage.ModelDeviceCode:       {"scopes": true},
	storage.ModelCibaRequest:      {"scopes": true},
}

func tableFor(model string) (string, bool) {
	t, ok := tableNames[model]
	return t, ok
}
