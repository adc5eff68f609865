package repository

// options collects RankStore construction settings.
type options struct {
	shardCount int
}

// Option applies a configuration option to the RankStore.
type Option func(*options)

// WithShardCount sets how many lock shards the store spreads keys over.
func WithShardCount(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.shardCount = n
		}
	}
}
