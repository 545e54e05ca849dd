package model

// LogRecord is the normalized representation of an emitted ledger event for
// storage. Seq and OpHash identify the operation that emitted it.
type LogRecord struct {
	Seq        uint64   `json:"seq"`
	OpHash     string   `json:"op_hash"`
	LogIndex   uint64   `json:"log_index"`
	Address    string   `json:"address"`
	Topics     []string `json:"topics"`
	Data       string   `json:"data"`
	IngestedAt string   `json:"ingested_at,omitempty"`
}
