package database

// Lookup statuses.
const (
	LookupOK       = "ok"
	LookupNotFound = "not_found"
	LookupFailed   = "failed"
)

// Insight report tracks.
const (
	TrackApps = "apps"
	TrackD2C  = "d2c"
)

// Lookup is one cached catalog API response, keyed by the normalized
// app name. Raw JSON is kept verbatim so normalization can be re-run
// without refetching.
type Lookup struct {
	AppKey    string
	AppName   string
	Status    string
	RawJSON   *string
	Attempts  int
	FetchedAt *string
}

// InsightReport is the persisted LLM output for one track.
type InsightReport struct {
	ID           int64
	Track        string
	StatsJSON    string
	InsightsJSON string
	BodyMarkdown string
	GeneratedAt  *string
}

// RunReport records one completed phase invocation.
type RunReport struct {
	ID      int64
	Phase   string
	Summary string
	RanAt   *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	LookupsTotal    int
	LookupsOK       int
	LookupsNotFound int
	LookupsFailed   int
	InsightReports  int
	Runs            int
}
