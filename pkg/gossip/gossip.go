// Copyright 2025 Certen Protocol
//
// Gossip broadcasts admitted proofs to peer nodes over plain HTTP POST and
// accepts inbound peer-received proofs, validating and admitting them into
// the local mempool. Grounded on pkg/server's stdlib net/http handler
// style; peer-received validation failures are logged and swallowed,
// never closing the connection.

package gossip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/SatsBridge/payy/pkg/mempool"
	"github.com/SatsBridge/payy/pkg/types"
)

// Validate is the admission check run against every inbound peer proof
// before it is added to the local mempool.
type Validate func(ctx context.Context, proof *types.UtxoProof) error

// Node broadcasts proofs to a static peer list and accepts inbound
// gossiped proofs on /gossip/transaction.
type Node struct {
	Peers    []string
	Client   *http.Client
	Validate Validate
	Mempool  *mempool.Mempool
}

// NewNode constructs a gossip Node with a bounded-timeout HTTP client.
func NewNode(peers []string, validate Validate, pool *mempool.Mempool) *Node {
	return &Node{
		Peers:    peers,
		Client:   &http.Client{Timeout: 5 * time.Second},
		Validate: validate,
		Mempool:  pool,
	}
}

// Gossip implements pipeline.Gossiper, broadcasting proof to every
// configured peer. A single peer's failure is logged and does not abort
// the broadcast to the rest.
func (n *Node) Gossip(ctx context.Context, proof *types.UtxoProof) error {
	body, err := json.Marshal(proof)
	if err != nil {
		return fmt.Errorf("gossip: marshal proof: %w", err)
	}

	for _, peer := range n.Peers {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, peer+"/gossip/transaction", bytes.NewReader(body))
		if err != nil {
			log.Printf("gossip: build request to %s: %v", peer, err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.Client.Do(req)
		if err != nil {
			log.Printf("gossip: send to %s: %v", peer, err)
			continue
		}
		resp.Body.Close()
	}
	return nil
}

// HandleReceive is the inbound peer-gossip HTTP handler. Validation
// failures are logged and swallowed; the connection is never closed in
// response to an invalid proof.
func (n *Node) HandleReceive(w http.ResponseWriter, r *http.Request) {
	var proof types.UtxoProof
	if err := json.NewDecoder(r.Body).Decode(&proof); err != nil {
		log.Printf("gossip: decode inbound proof: %v", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := n.Validate(r.Context(), &proof); err != nil {
		log.Printf("gossip: peer transaction rejected: %v", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	txnHash := proof.Hash()
	if err := n.Mempool.Add(txnHash, &proof, proof.InputCommitments); err != nil {
		if err != mempool.ErrAlreadyExists {
			log.Printf("gossip: mempool add: %v", err)
		}
	}

	w.WriteHeader(http.StatusOK)
}
