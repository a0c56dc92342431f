// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

// Package partition provides a map split into a fixed number of
// independently locked partitions. Operations on keys that land in
// different partitions never contend with each other. Scans that need a
// consistent view of the whole map lock every partition in ascending
// index order, which is the only thing preventing deadlock between two
// concurrent scans, so a goroutine must never hold two LockAll guards.
package partition

import (
	farm "github.com/dgryski/go-farm"
)

// DefaultPartitions is the partition count used when New is given n <= 0.
const DefaultPartitions = 8

// IdentityHash maps an integer key onto itself.
func IdentityHash[K ~int64 | ~uint64 | ~int | ~uint32 | ~int32](key K) uint64 {
	return uint64(key)
}

// StringHash hashes a string key with farmhash.
func StringHash[K ~string](key K) uint64 {
	return farm.Fingerprint64([]byte(key))
}

// Registry is a map from K to V split into a fixed number of partitions.
type Registry[K comparable, V any] struct {
	partitions []*partition[K, V]
	hash       func(K) uint64
}

// New creates a Registry with n partitions. The partition of a key is
// hash(key) % n.
func New[K comparable, V any](n int, hash func(K) uint64) *Registry[K, V] {
	if n <= 0 {
		n = DefaultPartitions
	}
	r := &Registry[K, V]{
		partitions: make([]*partition[K, V], n),
		hash:       hash,
	}
	for i := range r.partitions {
		r.partitions[i] = newPartition[K, V]()
	}
	return r
}

// NumPartitions returns the partition count.
func (r *Registry[K, V]) NumPartitions() int {
	return len(r.partitions)
}

// PartitionOf returns the index of the partition holding key.
func (r *Registry[K, V]) PartitionOf(key K) int {
	return int(r.hash(key) % uint64(len(r.partitions)))
}

// Insert adds key if it is absent. It returns false and leaves the
// existing value untouched if key is already present.
func (r *Registry[K, V]) Insert(key K, value V) bool {
	p := r.LockPartition(key)
	defer p.Unlock()
	if _, ok := p.Get(key); ok {
		return false
	}
	p.Set(key, value)
	return true
}

// Get returns the value stored for key.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	p := r.LockPartition(key)
	defer p.Unlock()
	return p.Get(key)
}

// Contains reports whether key is present.
func (r *Registry[K, V]) Contains(key K) bool {
	_, ok := r.Get(key)
	return ok
}

// Erase removes key and reports whether it was present.
func (r *Registry[K, V]) Erase(key K) bool {
	p := r.LockPartition(key)
	defer p.Unlock()
	return p.Erase(key)
}

// Size sums the partition sizes one partition at a time. The result is
// advisory: concurrent writers may change it before it is returned.
func (r *Registry[K, V]) Size() int {
	total := 0
	for i := range r.partitions {
		p := r.LockPartitionByIndex(i)
		total += p.Len()
		p.Unlock()
	}
	return total
}

// Empty reports whether every partition is empty.
func (r *Registry[K, V]) Empty() bool {
	return r.Size() == 0
}

// LockPartition locks the partition holding key. The guard must be
// released with Unlock.
func (r *Registry[K, V]) LockPartition(key K) *Locked[K, V] {
	return r.LockPartitionByIndex(r.PartitionOf(key))
}

// LockPartitionByIndex locks the i-th partition.
func (r *Registry[K, V]) LockPartitionByIndex(i int) *Locked[K, V] {
	p := r.partitions[i]
	p.mu.Lock()
	return &Locked[K, V]{p: p, index: i}
}

// LockAll locks every partition in ascending index order.
func (r *Registry[K, V]) LockAll() *AllLocked[K, V] {
	all := &AllLocked[K, V]{locked: make([]*Locked[K, V], 0, len(r.partitions))}
	for i := range r.partitions {
		all.locked = append(all.locked, r.LockPartitionByIndex(i))
	}
	return all
}

// Locked is exclusive access to a single partition.
type Locked[K comparable, V any] struct {
	p     *partition[K, V]
	index int
}

// Index returns the partition index.
func (l *Locked[K, V]) Index() int {
	return l.index
}

// Get returns the value stored for key in this partition.
func (l *Locked[K, V]) Get(key K) (V, bool) {
	v, ok := l.p.m[key]
	return v, ok
}

// Set stores value for key, replacing any previous value.
func (l *Locked[K, V]) Set(key K, value V) {
	l.p.m[key] = value
}

// Erase removes key and reports whether it was present.
func (l *Locked[K, V]) Erase(key K) bool {
	if _, ok := l.p.m[key]; !ok {
		return false
	}
	delete(l.p.m, key)
	return true
}

// Len returns the number of entries in this partition.
func (l *Locked[K, V]) Len() int {
	return len(l.p.m)
}

// Range calls f for each entry until f returns false. f may erase the
// entry it is given.
func (l *Locked[K, V]) Range(f func(key K, value V) bool) bool {
	for k, v := range l.p.m {
		if !f(k, v) {
			return false
		}
	}
	return true
}

// EraseIf removes every entry for which pred returns true and returns the
// removed values.
func (l *Locked[K, V]) EraseIf(pred func(key K, value V) bool) []V {
	var erased []V
	for k, v := range l.p.m {
		if pred(k, v) {
			delete(l.p.m, k)
			erased = append(erased, v)
		}
	}
	return erased
}

// Unlock releases the partition.
func (l *Locked[K, V]) Unlock() {
	l.p.mu.Unlock()
}

// AllLocked is exclusive access to every partition of a Registry.
type AllLocked[K comparable, V any] struct {
	locked []*Locked[K, V]
}

// Partitions returns the per-partition guards in index order.
func (a *AllLocked[K, V]) Partitions() []*Locked[K, V] {
	return a.locked
}

// Range calls f for each entry of each partition until f returns false.
func (a *AllLocked[K, V]) Range(f func(key K, value V) bool) {
	for _, l := range a.locked {
		if !l.Range(f) {
			return
		}
	}
}

// EraseIf removes every matching entry across all partitions.
func (a *AllLocked[K, V]) EraseIf(pred func(key K, value V) bool) []V {
	var erased []V
	for _, l := range a.locked {
		erased = append(erased, l.EraseIf(pred)...)
	}
	return erased
}

// Len returns the total number of entries.
func (a *AllLocked[K, V]) Len() int {
	total := 0
	for _, l := range a.locked {
		total += l.Len()
	}
	return total
}

// Unlock releases every partition in reverse acquisition order.
func (a *AllLocked[K, V]) Unlock() {
	for i := len(a.locked) - 1; i >= 0; i-- {
		a.locked[i].Unlock()
	}
	a.locked = nil
}
