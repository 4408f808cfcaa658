package types

// MaxBatchSize is the protocol's cap on events per request: the largest
// number of 128-byte events that fit one cluster message body.
const MaxBatchSize = 8189

// Operation tags a request with the kind of batch it carries and selects
// the shape of its reply. Values below 128 are reserved by the cluster's
// consensus layer.
type Operation uint8

const (
	OperationCreateAccounts  Operation = 138
	OperationCreateTransfers Operation = 139
	OperationLookupAccounts  Operation = 140
	OperationLookupTransfers Operation = 141
	OperationQueryAccounts   Operation = 144
	OperationQueryTransfers  Operation = 145
)

// EventSize returns the encoded width of one event for the operation, or 0
// for an unknown operation.
func (op Operation) EventSize() int {
	switch op {
	case OperationCreateAccounts:
		return AccountSize
	case OperationCreateTransfers:
		return TransferSize
	case OperationLookupAccounts, OperationLookupTransfers:
		return Uint128Size
	case OperationQueryAccounts, OperationQueryTransfers:
		return QueryFilterSize
	default:
		return 0
	}
}

// ResultSize returns the encoded width of one reply element for the
// operation, or 0 for an unknown operation.
func (op Operation) ResultSize() int {
	switch op {
	case OperationCreateAccounts, OperationCreateTransfers:
		return eventResultSize
	case OperationLookupAccounts, OperationQueryAccounts:
		return AccountSize
	case OperationLookupTransfers, OperationQueryTransfers:
		return TransferSize
	default:
		return 0
	}
}

// String returns the operation's protocol name.
func (op Operation) String() string {
	switch op {
	case OperationCreateAccounts:
		return "create_accounts"
	case OperationCreateTransfers:
		return "create_transfers"
	case OperationLookupAccounts:
		return "lookup_accounts"
	case OperationLookupTransfers:
		return "lookup_transfers"
	case OperationQueryAccounts:
		return "query_accounts"
	case OperationQueryTransfers:
		return "query_transfers"
	default:
		return "unknown"
	}
}
