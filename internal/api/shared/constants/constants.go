package constants

const (
	MAX_PAGE_SIZE           = 100
	DEFAULT_OFFSET          = uint64(0)
	DEFAULT_ASSETS_LIMIT    = 20
	DEFAULT_ANOMALIES_LIMIT = 20
	DEFAULT_STATS_DAYS      = 30
	MAX_STATS_DAYS          = 366
)
