// Package devserver is a local stand-in for the food recognition API. It
// issues short lived HS256 access tokens and long lived refresh tokens, keeps
// users and history in memory, and classifies images deterministically from
// their bytes. It backs `foodctl devserver` and the end-to-end tests of the
// client packages.
package devserver
