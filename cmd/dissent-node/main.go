// Command dissent-node is the thin driver: it decodes the positional-tuple
// contract of spec.md §6 into a session.Participant and a ring topology,
// then runs one Shuffle or Bulk round and prints the recovered plaintexts.
// Process supervision, peer discovery, and deployment are explicitly out
// of the core's scope — this binary only decodes and dispatches.
package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"go.uber.org/zap"

	"dissent/internal/bulk"
	"dissent/internal/primitives"
	"dissent/internal/ring"
	"dissent/internal/session"
	"dissent/internal/shuffle"
	"dissent/internal/vault"
)

func main() {
	mode := flag.String("mode", "shuffle", "round type: shuffle or bulk")
	vaultPath := flag.String("vault", "", "path to a sealed operator identity key, see --new-identity")
	vaultPass := flag.String("vault-pass", "", "passphrase for --vault (or set DISSENT_VAULT_PASS)")
	newIdentity := flag.Bool("new-identity", false, "generate a fresh operator identity key and seal it to --vault")
	flag.Parse()

	args := flag.Args()
	if len(args) < 12 {
		log.Fatalf("usage: dissent-node [flags] id key_len round_id n_nodes my_ip my_port leader_ip leader_port prev_ip prev_port next_ip next_port msg_len_or_file [max_len]")
	}

	id := atoiOrFatal(args[0], "id")
	_ = atoiOrFatal(args[1], "key_len") // modulus size is fixed wire-wide (internal/primitives); accepted for CLI-contract parity only
	roundID := uint64(atoiOrFatal(args[2], "round_id"))
	n := atoiOrFatal(args[3], "n_nodes")
	myIP, myPort := args[4], atoiOrFatal(args[5], "my_port")
	leaderIP, leaderPort := args[6], atoiOrFatal(args[7], "leader_port")
	prevIP, prevPort := args[8], atoiOrFatal(args[9], "prev_port")
	nextIP, nextPort := args[10], atoiOrFatal(args[11], "next_port")

	rest := args[12:]
	if len(rest) < 1 {
		log.Fatalf("missing msg_len_or_file")
	}
	message, err := decodeMessageArg(rest[0])
	if err != nil {
		log.Fatalf("decode message: %v", err)
	}
	// Without max_len, the slot is the smallest wire.PadToLength accepts:
	// its 4-byte length prefix plus the message.
	slotLen := len(message) + 4
	if len(rest) >= 2 {
		slotLen = atoiOrFatal(rest[1], "max_len")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	// The operator identity key is a purely local convenience — a stable
	// fingerprint logged across restarts of the same operator's node. It
	// plays no part in the protocol: every SignedEnvelope in a round is
	// signed and verified against that round's own trust-on-first-use
	// primary key (internal/session.KeyBook), never this key.
	if *vaultPath != "" || *newIdentity {
		operatorPriv, err := loadOrCreateIdentity(*newIdentity, *vaultPath, *vaultPass)
		if err != nil {
			log.Fatalf("operator identity: %v", err)
		}
		der, err := x509.MarshalPKIXPublicKey(&operatorPriv.PublicKey)
		if err != nil {
			log.Fatalf("operator identity: %v", err)
		}
		sum := sha256.Sum256(der)
		logger.Info("operator identity", zap.String("fingerprint", hex.EncodeToString(sum[:])))
	}

	prevID := (id - 1 + n) % n
	nextID := (id + 1) % n
	// Full peer discovery and endpoint vouching are out of this core's
	// scope (SPEC_FULL.md §8); only the ring neighbors and the leader are
	// known positionally. Every id 0..n-1 still needs an entry so
	// ring.Build's modulo arithmetic sees the real roster size — ids this
	// driver has no address for get a zero-value placeholder, which is
	// enough for n<=3 (every id is self/leader/prev/next) and for the
	// spec's own worked N=3 scenarios. From n=4 on the leader's broadcast
	// dials ids it has only a placeholder for, so larger rings need a
	// fuller roster than this driver builds.
	peers := make(map[int]session.Peer, n)
	for i := 0; i < n; i++ {
		peers[i] = session.Peer{ID: i}
	}
	peers[id] = session.Peer{ID: id, IP: myIP, Port: myPort}
	peers[0] = session.Peer{ID: 0, IP: leaderIP, Port: leaderPort}
	peers[prevID] = session.Peer{ID: prevID, IP: prevIP, Port: prevPort}
	peers[nextID] = session.Peer{ID: nextID, IP: nextIP, Port: nextPort}

	scratch, err := session.NewScratchDir(os.TempDir())
	if err != nil {
		log.Fatalf("scratch dir: %v", err)
	}

	participant := &session.Participant{
		ID: id, N: n, Leader: id == 0, RoundID: roundID,
		Peers: peers, Log: logger, Scratch: scratch,
	}

	topology := ring.Build(id, peers)
	listenAddr := fmt.Sprintf("%s:%d", myIP, myPort)
	net, err := shuffle.NewTCPNet(topology, peers, listenAddr, logger)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}

	cleanup := session.CleanupAggregator{}
	cleanup.Defer(net.Close)
	cleanup.Defer(func() error { return session.CleanupScratch(scratch) })
	defer func() {
		if err := cleanup.Run(); err != nil {
			logger.Error("cleanup", zap.Error(err))
		}
	}()

	ctx := context.Background()
	metrics := session.NewRoundMetrics(logger)

	var outputs [][]byte
	switch *mode {
	case "shuffle":
		eng := shuffle.NewEngine(participant, net, metrics)
		outputs, err = eng.Run(ctx, message, slotLen)
	case "bulk":
		eng := bulk.NewEngine(participant, net, metrics)
		outputs, err = eng.Run(ctx, message, slotLen)
	default:
		log.Fatalf("unknown --mode %q, want shuffle or bulk", *mode)
	}
	if err != nil {
		// log.Fatalf exits without running deferred calls, so release the
		// round's sockets and scratch directory first.
		if cerr := cleanup.Run(); cerr != nil {
			logger.Error("cleanup", zap.Error(cerr))
		}
		log.Fatalf("round aborted: %v", err)
	}

	for i, out := range outputs {
		fmt.Printf("slot %d: %s\n", i, out)
	}
}

func loadOrCreateIdentity(newIdentity bool, vaultPath, vaultPassFlag string) (*rsa.PrivateKey, error) {
	pass := vaultPassFlag
	if pass == "" {
		pass = os.Getenv("DISSENT_VAULT_PASS")
	}

	switch {
	case newIdentity:
		if vaultPath == "" || pass == "" {
			return nil, fmt.Errorf("--new-identity requires --vault and --vault-pass (or DISSENT_VAULT_PASS)")
		}
		priv, err := primitives.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		if err := vault.Seal(vaultPath, []byte(pass), priv); err != nil {
			return nil, err
		}
		return priv, nil
	case vaultPath != "":
		if pass == "" {
			return nil, fmt.Errorf("--vault requires --vault-pass (or DISSENT_VAULT_PASS)")
		}
		return vault.Open(vaultPath, []byte(pass))
	default:
		return primitives.GenerateKeyPair()
	}
}

// decodeMessageArg implements msg_len_or_file: a bare integer draws that
// many random bytes as the payload, anything else is a path to read the
// payload from.
func decodeMessageArg(arg string) ([]byte, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		buf := make([]byte, n)
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		return buf, nil
	}
	return os.ReadFile(arg)
}

func atoiOrFatal(s, name string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid %s %q: %v", name, s, err)
	}
	return v
}
