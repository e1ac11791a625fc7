// Package tcc implements a Try-Confirm-Cancel distributed transaction
// coordinator. A TxManager drives a set of registered Participants through a
// two-phase protocol: a parallel Try fan-out bounded by a timer, then a
// Confirm or Cancel fan-out executed under retry. Transaction state is kept in
// a durable TransactionStore; a background monitor, serialized across
// coordinator instances by the store's advisory lock, picks up hanging
// transactions and drives them to a terminal state.
//
// Store backends live in the inmemory, redis & cassandra subpackages. The
// rest_api subpackage surfaces the coordinator over HTTP.
package tcc
