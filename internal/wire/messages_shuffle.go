package wire

// The types in this file are the tagged sum types Design Notes §9 calls
// for: one concrete struct per message a phase can emit, replacing the
// original's dynamically-typed tuples. Every message here carries its own
// RoundID field, which the engines check on receipt (RoundEnvelope is not
// used for them), and everything but Phase3Bag (which is reissued by each
// ring hop, not re-signed) is sent inside a SignedEnvelope.

// KeyBookEntry is one node's published key material: its round-fresh
// primary key (trusted on first use, then used to verify everything it
// signs for the rest of the round) and the secondary key it generated for
// this round's onion layers.
type KeyBookEntry struct {
	PrimaryPub   []byte `json:"primary_pub"`
	SecondaryPub []byte `json:"secondary_pub"`
}

// Phase1Report is a node's KeyExchange contribution: "here is my address
// and my two public keys for this round." Signed with the node's primary
// private key.
type Phase1Report struct {
	ID           int    `json:"id"`
	RoundID      uint64 `json:"round_id"`
	IP           string `json:"ip"`
	Port         int    `json:"port"`
	PrimaryPub   []byte `json:"primary_pub"`
	SecondaryPub []byte `json:"secondary_pub"`
}

// KeyBookAnnounce is the leader's consolidated reply closing KeyExchange:
// every participant's key material, indexed by id, signed by the leader so
// a forged entry is attributable.
type KeyBookAnnounce struct {
	RoundID uint64                  `json:"round_id"`
	N       int                     `json:"n"`
	Entries map[int]KeyBookEntry    `json:"entries"`
}

// Phase2Submission is a node's Submit contribution: its onion-encrypted
// ciphertext for this round, addressed to the leader.
type Phase2Submission struct {
	SenderID   int    `json:"sender_id"`
	RoundID    uint64 `json:"round_id"`
	Ciphertext []byte `json:"ciphertext"`
}

// Phase3Bag is the ring-passed bag of ciphertexts mid-Anonymize: Stage
// counts how many nodes have peeled a layer off every entry so far.
type Phase3Bag struct {
	RoundID     uint64   `json:"round_id"`
	Stage       int      `json:"stage"`
	Ciphertexts [][]byte `json:"ciphertexts"`
}

// Phase4GoVote is a node's Verify contribution: Go reports whether the
// node's own inner ciphertext is in the final bag, and Hash is the
// HashList digest of the final bag as that node received it.
type Phase4GoVote struct {
	VoterID int    `json:"voter_id"`
	RoundID uint64 `json:"round_id"`
	Go      bool   `json:"go"`
	Hash    []byte `json:"hash"`
}

// Phase5Reveal is a node's Reveal contribution: its secondary private key,
// PEM-encoded, published once every voter has said Go so the cleartext
// permutation can be recovered. A round that aborts in Verify never
// reaches Reveal, so no key is published then.
type Phase5Reveal struct {
	ID               int    `json:"id"`
	RoundID          uint64 `json:"round_id"`
	SecondaryPrivPEM []byte `json:"secondary_priv_pem"`
}
