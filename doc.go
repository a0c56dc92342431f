package tinycursor

/*
TinyCursor is a registry of open query cursors. A query that cannot return all of its results in one batch parks its
executor in a cursor, and later getMore calls pin the cursor by id, pull the next batch and release it again. The
registry keeps cursors per namespace, kills them on request, times out idle ones and invalidates them when their
namespace goes away.

Building TinyCursor produces two executables: cursor-server, which hosts the registry behind an HTTP API, and
cursor-ctl, a command line client for that API.

The `tinycursor` module is organized into the following packages:

* `server/cursor`: the cursor registry itself: managers, the namespace directory, pins and operations.
* `server/query`: find, getMore and killCursors commands built on the registry.
* `server/auth`, `server/session`, `server/audit`: authorization, logical sessions and audit events the registry uses.
* `server/api`: the HTTP API.
* `pkg`: utilities shared by the packages above, including the partitioned map the registry is built on.
* `tools/cursor-ctl`: the command line client.
*/
