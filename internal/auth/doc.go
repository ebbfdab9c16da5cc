// Package auth holds card holders and their per-door grants.
//
// Users are resolved by card UID (reader flow) or by ID (remote flow). A
// user must be active to be granted anything. Permissions pair one user
// with one door and may carry an expiry, remote-unlock rights and a
// schedule override. Expiry is evaluated by the caller at decision time;
// the repository returns expired grants as stored.
//
// Both collections are read-only to the access path. Create, Update and
// Delete serve the administration surface that provisions them.
package auth
