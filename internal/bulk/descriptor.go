package bulk

// descriptorPayload is what each node anonymizes through the nested
// Shuffle round: a slot's pad-masked ciphertext plus, for every other
// participant, the RSA-wrapped pairwise seed and expected pad hash they
// will need to contribute their half of that slot's XOR cancellation.
// There is deliberately no owner id field — after the shuffle, a node
// recognizes its own slot only by byte-comparing the peeled entry against
// what it originally submitted, the same self-recognition trick Shuffle's
// Verify phase uses for its go-vote.
type descriptorPayload struct {
	SlotLen   int            `json:"slot_len"`
	Cipher    []byte         `json:"cipher"`
	EncSeeds  map[int][]byte `json:"enc_seeds"`
	PadHashes map[int][]byte `json:"pad_hashes"`
}
