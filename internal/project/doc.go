// Package project locates the root directory of the project a process
// runs in.
//
// Root Discovery:
//
// Starting from a directory, FindRoot walks up to the nearest directory
// holding a marker file (go.mod by default). When no marker is found it
// falls back to the work tree root of the enclosing git repository:
//   - /srv/app/go.mod exists: /srv/app/cmd/api resolves to /srv/app
//   - no go.mod, /srv/app/.git exists: resolves to /srv/app
//   - neither: ErrRootNotFound
//
// File transports write under <root>/storage/logs.
package project
