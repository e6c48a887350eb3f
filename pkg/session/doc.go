/*
Package session serializes access to persisted sessions.

The manager guarantees at-most-one-writer per session id: in-process through
reference-counted per-id mutexes, and optionally across replicas through a
distributed lock. Locks are held only across load-mutate-save critical
sections; a parked session holds none.
*/
package session
