package cnst

// Tracer names used across the services
const (
	TracePresence  = "vitrin/presence"
	TraceGeo       = "vitrin/geo"
	TraceAnalytics = "vitrin/analytics"
)

// Span names
const (
	SpanRegister     = "presence.register"
	SpanHeartbeat    = "presence.heartbeat"
	SpanEnd          = "presence.end"
	SpanEnrich       = "presence.enrich"
	SpanCleanup      = "presence.cleanup"
	SpanHistory      = "presence.history"
	SpanGeoPublicIP  = "geo.public_ip"
	SpanGeoLocate    = "geo.locate"
	SpanAnalyticsRun = "analytics.report"
)
