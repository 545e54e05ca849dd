package model

// DecodeError records a decode failure for a journal line.
type DecodeError struct {
	Seq      uint64 `json:"seq"`
	OpHash   string `json:"op_hash"`
	LogIndex uint64 `json:"log_index"`
	Address  string `json:"address"`
	Topic0   string `json:"topic0"`
	Error    string `json:"error"`
}
