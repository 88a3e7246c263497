package telemetry

// Span and attribute names shared by instrumented code.
const (
	SpanFeedNearby   = "feed.nearby"
	SpanMessagePost  = "message.post"
	SpanAccountPurge = "account.purge"

	AttrViewerID       = "geobubbles.viewer_id"
	AttrRadiusKm       = "geobubbles.radius_km"
	AttrLocationSource = "geobubbles.location_source"
	AttrCandidates     = "geobubbles.feed.candidates"
	AttrVisible        = "geobubbles.feed.visible"
	AttrRejected       = "geobubbles.feed.rejected"
)
