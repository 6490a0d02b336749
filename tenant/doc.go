// Package tenant binds authenticated principals to tenant-scoped storage.
// Resolution is stateless: every call produces a fresh handle and no
// tenant-to-store binding is ever cached, so a revoked principal loses
// access on its next request.
package tenant
