// Package cmd implements the foodctl command tree.
//
// Every command that talks to the API builds one client per invocation. The
// client loads the persisted session, refreshes an expired access token
// transparently and clears the stored credentials when the refresh token is
// no longer accepted.
package cmd
