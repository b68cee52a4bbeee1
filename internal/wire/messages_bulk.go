package wire

// BulkDescriptor describes one node's slot: its owner, round, slot length
// and ciphertext, shaped like a Phase2Submission. The bulk engine does not
// use it; its DescriptorGen phase serializes internal/bulk's own
// descriptorPayload, which carries no owner id.
type BulkDescriptor struct {
	OwnerID    int    `json:"owner_id"`
	RoundID    uint64 `json:"round_id"`
	SlotLen    int    `json:"slot_len"`
	Ciphertext []byte `json:"ciphertext"`
}

// BulkTransmission is a sender-tagged payload for one round. The bulk
// engine does not use it; its Transmit phase sends internal/bulk's own
// transmitBundle of per-slot pad contributions.
type BulkTransmission struct {
	SenderID int    `json:"sender_id"`
	RoundID  uint64 `json:"round_id"`
	Payload  []byte `json:"payload"`
}

// BulkCheatHash is a node's Verify contribution: the HashList digest of the
// combined final ciphertext set as that node received it, signed and
// exchanged through the leader so any two nodes that disagree on what the
// round produced abort it.
type BulkCheatHash struct {
	SenderID int    `json:"sender_id"`
	RoundID  uint64 `json:"round_id"`
	Hash     []byte `json:"hash"`
}
