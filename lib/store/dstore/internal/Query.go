package internal

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTGet       QueryType = iota // Retrieve an entry by key.
	QueryTTTL                        // Retrieve the remaining lifetime of an entry.
	QueryTKeys                       // List all keys with a prefix.
	QueryTGetDBInfo                  // Retrieve metadata about the database underlying the machine.
)

func (q QueryType) String() string {
	switch q {
	case QueryTGet:
		return "Get"
	case QueryTTTL:
		return "TTL"
	case QueryTKeys:
		return "Keys"
	case QueryTGetDBInfo:
		return "GetDBInfo"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via SyncRead or ReadStale
type Query struct {
	Type QueryType // The type of Query to perform.
	Key  string    // The key (or prefix for QueryTKeys) of the Query, empty for GetDBInfo.
}

// QueryResult is the result of a QueryTGet operation.
// All other query results are primitive types or predefined structs (int64, []string, db.DatabaseInfo).
type QueryResult struct {
	Ok    bool
	Value []byte
}
