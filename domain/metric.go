package domain

import "time"

// MetricPoint is a single record as returned by the provider, before it is
// bound to a client. RecordID is the provider-side identifier used for
// deduplication: the weight log id for logged streams, the Unix timestamp of
// the entry date (UTC midnight) for date-keyed streams. Ordering is numeric.
type MetricPoint struct {
	RecordID  int64
	Timestamp time.Time
	Value     float64
	Extra     map[string]float64
}

// MetricRecord is a persisted metric point. Records are unique per
// (client_id, stream, record_id); re-ingesting an already stored record id
// must never create a duplicate.
type MetricRecord struct {
	ClientID  string             `bson:"client_id"       json:"client_id"`
	Stream    MetricStream       `bson:"stream"          json:"stream"`
	RecordID  int64              `bson:"record_id"       json:"record_id"`
	Timestamp time.Time          `bson:"timestamp"       json:"timestamp"`
	Value     float64            `bson:"value"           json:"value"`
	Extra     map[string]float64 `bson:"extra,omitempty" json:"extra,omitempty"`
}

// Checkpoint is the durable marker of ingestion progress for one
// (client, stream) pair. LastTimestamp is monotonically non-decreasing and is
// the lower bound of the next fetch window; LastRecordID guards against
// several records sharing a timestamp. A checkpoint is advanced only after
// the corresponding batch is durably persisted.
type Checkpoint struct {
	ClientID      string       `bson:"client_id"      json:"client_id"`
	Stream        MetricStream `bson:"stream"         json:"stream"`
	LastRecordID  int64        `bson:"last_record_id" json:"last_record_id"`
	LastTimestamp time.Time    `bson:"last_timestamp" json:"last_timestamp"`
	UpdatedAt     time.Time    `bson:"updated_at"     json:"updated_at"`
}
