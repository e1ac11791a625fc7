package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/sharedcode/tcc"
	cas "github.com/sharedcode/tcc/cassandra"
	"github.com/sharedcode/tcc/inmemory"
	"github.com/sharedcode/tcc/redis"
	restapi "github.com/sharedcode/tcc/rest_api"
)

// Cassandra Config, please update with your Cassandra Server cluster config.
var cassConfig = cas.Config{
	ClusterHosts: []string{"localhost:9042"},
	Keyspace:     "tcc",
}

// Redis Config, please update with your Redis cluster config.
var redisConfig = redis.Options{
	Address:  "localhost:6379",
	Password: "", // no password set
	DB:       0,  // use default DB
}

func init() {
	tcc.ConfigureLogging()

	// TCC_BACKEND selects the transaction log: "cassandra", "redis" or the
	// default in-process store (handy on dev, survives nothing).
	var store tcc.TransactionStore
	switch os.Getenv("TCC_BACKEND") {
	case "cassandra":
		if _, err := redis.OpenConnection(redisConfig); err != nil {
			log.Fatal(err)
		}
		if _, err := cas.OpenConnection(cassConfig); err != nil {
			log.Fatal(err)
		}
		store = cas.NewTransactionStore()
	case "redis":
		if _, err := redis.OpenConnection(redisConfig); err != nil {
			log.Fatal(err)
		}
		store = redis.NewTransactionStore()
	default:
		store = inmemory.NewTransactionStore()
	}

	manager := tcc.NewTxManager(store, tcc.DefaultOptions(), tcc.NewMetricsCollector())

	// Sample participants. Replace these with adapters calling your services'
	// try/confirm/cancel endpoints.
	if err := manager.Register(newHoldParticipant("inventory")); err != nil {
		log.Fatal(err)
	}
	if err := manager.Register(newHoldParticipant("payment")); err != nil {
		log.Fatal(err)
	}

	restapi.Manager = manager
	restapi.Store = store
}

// holdParticipant is an in-process sample participant. Try places a hold keyed
// to the transaction id; Confirm burns it; Cancel releases it. All three are
// idempotent, as the coordinator may deliver them more than once.
type holdParticipant struct {
	id    string
	mux   sync.Mutex
	holds map[int64]map[string]string
}

func newHoldParticipant(id string) *holdParticipant {
	return &holdParticipant{
		id:    id,
		holds: make(map[int64]map[string]string),
	}
}

func (p *holdParticipant) ID() string {
	return p.id
}

func (p *holdParticipant) Try(ctx context.Context, req *tcc.TryRequest) error {
	p.mux.Lock()
	defer p.mux.Unlock()
	if _, ok := p.holds[req.TxID]; ok {
		return nil
	}
	if req.Metadata[fmt.Sprintf("%s_reject", p.id)] == "true" {
		return tcc.Error{Code: tcc.ParticipantFailure, Err: fmt.Errorf("%s rejected transaction %d", p.id, req.TxID), UserData: p.id}
	}
	p.holds[req.TxID] = req.Metadata
	return nil
}

func (p *holdParticipant) Confirm(ctx context.Context, txID int64) error {
	p.mux.Lock()
	defer p.mux.Unlock()
	delete(p.holds, txID)
	return nil
}

func (p *holdParticipant) Cancel(ctx context.Context, txID int64) error {
	p.mux.Lock()
	defer p.mux.Unlock()
	delete(p.holds, txID)
	return nil
}
