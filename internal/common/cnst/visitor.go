package cnst

// Placeholder values stored in visitor documents. They are user visible on the
// admin dashboard, so they stay in the storefront language.
const (
	// Unknown marks a field that could not be resolved
	Unknown = "Bilinmiyor"
	// Loading marks a field whose enrichment has not finished yet
	Loading = "Yükleniyor..."
	// Direct is the referrer of a visit without one
	Direct = "Doğrudan"
	// DefaultLanguage is used when the client does not report one
	DefaultLanguage = "tr-TR"
	// DefaultPage is the page recorded when the client does not report one
	DefaultPage = "/"
)

// Device classes
const (
	DeviceMobile  = "Mobil"
	DeviceTablet  = "Tablet"
	DeviceDesktop = "Masaüstü"
)

// Collection names shared by every storage backend
const (
	CollectionActive  = "active_visitors"
	CollectionHistory = "visitor_history"
)
