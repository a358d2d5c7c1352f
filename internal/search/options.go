package search

// Defaults used when Options fields are left zero.
const (
	DefaultLimit     = 25
	DefaultThreshold = 30

	// NearExact is the score at which a single component dominates the
	// combined score instead of being averaged with the other.
	NearExact = 95
)

// Options controls one search. The zero value searches active records with
// DefaultLimit results and no threshold.
type Options struct {
	Limit             int
	Threshold         int
	IncludeDeprecated bool
}

// DefaultOptions mirrors the stock launcher settings.
func DefaultOptions() Options {
	return Options{Limit: DefaultLimit, Threshold: DefaultThreshold}
}

func (o Options) normalized() Options {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Threshold < 0 {
		o.Threshold = 0
	}
	if o.Threshold > 100 {
		o.Threshold = 100
	}
	return o
}
