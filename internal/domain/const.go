package domain

const (
	// Blockchain constants
	ETHEREUM_ZERO_ADDRESS = "0x0000000000000000000000000000000000000000"

	// GLOBAL_STATS_ID is the primary key of the singleton global stats row
	GLOBAL_STATS_ID = 1

	// DAY_LAYOUT is the layout of daily stats keys, always in UTC
	DAY_LAYOUT = "2006-01-02"
)
