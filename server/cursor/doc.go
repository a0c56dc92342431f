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

// Package cursor keeps server side cursors between the batches of a query.
//
// A Manager owns the cursors of one namespace in a partitioned registry, so
// that operations on unrelated cursors rarely contend. A cursor is used
// through a Pin, which grants one Operation exclusive use until it is
// released. Cursors may be killed by id, timed out when idle, or
// invalidated when their namespace changes; a pinned cursor is never
// destroyed under its holder but is destroyed when the pin is released.
// Executors are always disposed outside registry locks.
package cursor
