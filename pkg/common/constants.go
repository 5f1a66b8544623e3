package common

const (
	RedisStreamAnalysisTrigger = "ingest.analysis.trigger"

	RedisStreamGroup    = "analyzer-group"
	RedisStreamConsumer = "analyzer-consumer"
)
