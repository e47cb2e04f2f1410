package errors

// Template defines a registered error type.
type Template struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// ============================================
	// Config Errors (S100-S119)
	// ============================================

	"S100": {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "selectd looks for selectd.yaml, selectd.yml or selectd.json in the working directory unless --config is given.",
	},
	"S101": {
		Category: CategoryConfig,
		Message:  "Invalid config file",
		Detail:   "The config file could not be parsed.",
	},
	"S102": {
		Category: CategoryConfig,
		Message:  "Invalid environment override",
		Detail:   "An SELECTD_* environment variable could not be applied to the config.",
	},
	"S103": {
		Category: CategoryConfig,
		Message:  "Invalid config value",
		Detail:   "A config value is missing or out of range.",
	},

	// ============================================
	// Source Errors (S120-S139)
	// ============================================

	"S120": {
		Category: CategorySource,
		Message:  "Unknown source kind",
		Detail:   "source.kind must be one of file, s3 or sql.",
	},
	"S121": {
		Category: CategorySource,
		Message:  "Source fetch failed",
		Detail:   "The backend could not be read. The last good snapshot stays in place.",
	},
	"S122": {
		Category: CategorySource,
		Message:  "Source open failed",
		Detail:   "The backend connection could not be established.",
	},

	// ============================================
	// Selector Errors (S140-S159)
	// ============================================

	"S140": {
		Category: CategorySelector,
		Message:  "Selection failed",
		Detail:   "The selector returned an error for the current snapshot.",
	},
	"S141": {
		Category: CategorySelector,
		Message:  "No server snapshot",
		Detail:   "The source has not produced a server snapshot yet.",
	},

	// ============================================
	// Server Errors (S160-S179)
	// ============================================

	"S160": {
		Category: CategoryServer,
		Message:  "Server failed",
		Detail:   "The HTTP server stopped with an error.",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
